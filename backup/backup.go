// Package backup implements the "Persisted Slice format" of spec.md §6: a
// header naming a Slice's capacity and row layout, followed by its DocTable
// and RowTable regions, each zstd-compressed and preceded by its compressed
// length and a CRC32C of its uncompressed bytes.
// Grounded on the teacher's wal/header.go (magic+version fixed header) and
// persistence/checksum.go (a checksum trailer per written region).
package backup

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fs"
	"github.com/hausdorff/bitfunnel/internal/hash"
	"github.com/hausdorff/bitfunnel/slice"
	"github.com/klauspost/compress/zstd"
)

const (
	magic   uint32 = 0x42464e53 // "BFNS"
	version uint16 = 1
)

// WriteSlice writes s's header, DocTable region, and every RowTable region
// (each independently zstd-compressed, each preceded by its compressed
// length and a CRC32C of its uncompressed bytes) to path on fsys.
func WriteSlice(fsys fs.FileSystem, path string, s *slice.Slice) error {
	w, err := fsys.OpenForWrite(path)
	if err != nil {
		return fmt.Errorf("backup: open %s for write: %w", path, err)
	}
	defer w.Close()

	bw := bufio.NewWriter(w)

	ranks := ranksOf(s)
	if err := writeHeader(bw, s, ranks); err != nil {
		return fmt.Errorf("backup: write header: %w", err)
	}

	buf := s.Buffer()
	docTable := s.DocTable()
	if err := writeRegion(bw, buf[docTable.BaseOffset:docTable.BaseOffset+docTable.SizeBytes()]); err != nil {
		return fmt.Errorf("backup: write doc table: %w", err)
	}

	for _, rank := range ranks {
		rt, _ := s.RowTable(rank)
		if err := writeRegion(bw, buf[rt.BaseOffset:rt.BaseOffset+rt.SizeBytes()]); err != nil {
			return fmt.Errorf("backup: write row table rank %d: %w", rank, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("backup: flush: %w", err)
	}
	return nil
}

// ReadSlice reconstructs a Slice from a file WriteSlice produced. The
// returned Slice's layout (capacity, blob sizes, row counts) is rebuilt
// deterministically from the header, then every region's bytes are
// decompressed and checksum-verified into the freshly allocated Buffer.
func ReadSlice(fsys fs.FileSystem, path string) (*slice.Slice, error) {
	r, err := fsys.OpenForRead(path)
	if err != nil {
		return nil, fmt.Errorf("backup: open %s for read: %w", path, err)
	}
	defer r.Close()

	br := bufio.NewReader(r)
	cfg, ranks, err := readHeader(br)
	if err != nil {
		return nil, fmt.Errorf("backup: read header: %w", err)
	}

	s, err := slice.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("backup: rebuild slice layout: %w", err)
	}

	buf := s.Buffer()
	docTable := s.DocTable()
	docTableRegion, err := readRegion(br, docTable.SizeBytes())
	if err != nil {
		return nil, fmt.Errorf("backup: read doc table: %w", err)
	}
	copy(buf[docTable.BaseOffset:], docTableRegion)

	for _, rank := range ranks {
		rt, _ := s.RowTable(rank)
		region, err := readRegion(br, rt.SizeBytes())
		if err != nil {
			return nil, fmt.Errorf("backup: read row table rank %d: %w", rank, err)
		}
		copy(buf[rt.BaseOffset:], region)
	}

	return s, nil
}

func ranksOf(s *slice.Slice) []core.Rank {
	var ranks []core.Rank
	for r := core.Rank(0); r <= core.MaxRank; r++ {
		if _, ok := s.RowTable(r); ok {
			ranks = append(ranks, r)
		}
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	return ranks
}

func writeHeader(w io.Writer, s *slice.Slice, ranks []core.Rank) error {
	docTable := s.DocTable()
	if err := binary.Write(w, binary.LittleEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, version); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(s.Capacity())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(docTable.FixedBlobSize)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(docTable.BlobCapacity)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(ranks))); err != nil {
		return err
	}
	for _, rank := range ranks {
		rt, _ := s.RowTable(rank)
		if err := binary.Write(w, binary.LittleEndian, uint8(rank)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(rt.RowCount)); err != nil {
			return err
		}
	}
	return nil
}

func readHeader(r io.Reader) (slice.Config, []core.Rank, error) {
	var gotMagic uint32
	var gotVersion uint16
	if err := binary.Read(r, binary.LittleEndian, &gotMagic); err != nil {
		return slice.Config{}, nil, err
	}
	if gotMagic != magic {
		return slice.Config{}, nil, fmt.Errorf("backup: bad magic %#x", gotMagic)
	}
	if err := binary.Read(r, binary.LittleEndian, &gotVersion); err != nil {
		return slice.Config{}, nil, err
	}
	if gotVersion != version {
		return slice.Config{}, nil, fmt.Errorf("backup: unsupported format version %d", gotVersion)
	}

	var capacity, fixedBlobSize, blobCapacity uint32
	if err := binary.Read(r, binary.LittleEndian, &capacity); err != nil {
		return slice.Config{}, nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &fixedBlobSize); err != nil {
		return slice.Config{}, nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &blobCapacity); err != nil {
		return slice.Config{}, nil, err
	}

	var numRanks uint16
	if err := binary.Read(r, binary.LittleEndian, &numRanks); err != nil {
		return slice.Config{}, nil, err
	}

	rowCounts := make(map[core.Rank]core.RowIndex, numRanks)
	ranks := make([]core.Rank, 0, numRanks)
	for i := 0; i < int(numRanks); i++ {
		var rank uint8
		var rowCount uint32
		if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
			return slice.Config{}, nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &rowCount); err != nil {
			return slice.Config{}, nil, err
		}
		rowCounts[core.Rank(rank)] = core.RowIndex(rowCount)
		ranks = append(ranks, core.Rank(rank))
	}

	cfg := slice.Config{
		Capacity:      int(capacity),
		FixedBlobSize: int(fixedBlobSize),
		BlobCapacity:  int(blobCapacity),
		RowCounts:     rowCounts,
	}
	return cfg, ranks, nil
}

// writeRegion zstd-compresses region and writes it as a
// (compressedLength uint32, crc32OfRegion uint32, compressedBytes) triple.
func writeRegion(w io.Writer, region []byte) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer enc.Close()
	compressed := enc.EncodeAll(region, nil)

	if err := binary.Write(w, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, hash.CRC32C(region)); err != nil {
		return err
	}
	_, err = w.Write(compressed)
	return err
}

// readRegion reads a region writeRegion produced, decompresses it, verifies
// its CRC32 against wantLen bytes of decompressed output, and returns it.
func readRegion(r io.Reader, wantLen int) ([]byte, error) {
	var compressedLen, wantCRC uint32
	if err := binary.Read(r, binary.LittleEndian, &compressedLen); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &wantCRC); err != nil {
		return nil, err
	}
	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	region, err := dec.DecodeAll(compressed, make([]byte, 0, wantLen))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(region) != wantLen {
		return nil, fmt.Errorf("decompressed length %d, want %d", len(region), wantLen)
	}
	if gotCRC := hash.CRC32C(region); gotCRC != wantCRC {
		return nil, fmt.Errorf("checksum mismatch: got %#x, want %#x", gotCRC, wantCRC)
	}
	return region, nil
}
