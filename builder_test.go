package bitfunnel_test

import (
	"testing"

	"github.com/hausdorff/bitfunnel"
	"github.com/stretchr/testify/require"
)

func TestPrivateRank0BuilderBuild(t *testing.T) {
	idx, err := bitfunnel.PrivateRank0().
		Metrics(&bitfunnel.BasicMetricsCollector{}).
		Build()
	require.NoError(t, err)
	defer idx.Close()
	require.NotNil(t, idx)
}

func TestPrivateSharedRank0BuilderBuild(t *testing.T) {
	idx, err := bitfunnel.PrivateSharedRank0().
		Density(0.2).
		SNR(20).
		Build()
	require.NoError(t, err)
	defer idx.Close()
	require.NotNil(t, idx)
}

func TestPrivateSharedRank0And3BuilderBuild(t *testing.T) {
	idx, err := bitfunnel.PrivateSharedRank0And3().
		Density(0.15).
		SNR(50).
		Build()
	require.NoError(t, err)
	defer idx.Close()
	require.NotNil(t, idx)
}

func TestBuilderMustBuild(t *testing.T) {
	idx := bitfunnel.PrivateRank0().MustBuild()
	defer idx.Close()
	require.NotNil(t, idx)
}
