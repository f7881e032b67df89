// Package bitfunnel implements a signature-file full-text search engine:
// an inverted index that represents postings as compressed bitmaps ("rows")
// rather than per-document term lists, trading some query-time ambiguity
// for index density and branch-free matching.
//
// # Quick Start
//
// Build an Index with one of the treatment-specific fluent builders, which
// choose how terms are assigned rows:
//
//	idx, err := bitfunnel.PrivateRank0().
//	    Logger(bitfunnel.NewTextLogger(slog.LevelInfo)).
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//	defer idx.Close()
//
// Add at least one shard before ingesting:
//
//	shardID := idx.AddShard(slice.Config{
//	    Capacity:      core.DocumentsPerSlice,
//	    FixedBlobSize: 0,
//	    BlobCapacity:  0,
//	}, nil) // nil treatment: use the Index's configured default
//
// # Ingestion
//
// A document is claimed, given postings, and activated. Only after
// Activate does it become visible to queries:
//
//	h, _ := idx.Ingest(ctx, shardID, core.InvalidDocId)
//	h.AddPosting(term.NewTerm("hello", 1, 0))
//	h.AddPosting(term.NewTerm("world", 1, 0))
//	h.Activate()
//
// When a document is no longer wanted, Expire clears its active bit. Once
// every document claimed from a Slice has expired, the Slice becomes
// eligible for the Recycler to back up and free.
//
//	idx.Expire(ctx, h)
//
// # Querying
//
// Build a query with the And/Or/Not/Unigram/Phrase/Fact helpers, which
// allocate into the arena Query hands them, then run it against a shard:
//
//	handles, _ := idx.Query(ctx, shardID, func(a *arena.Arena) *plan.TermMatchNode {
//	    return bitfunnel.And(a,
//	        bitfunnel.Unigram(a, term.NewTerm("hello", 1, 0)),
//	        bitfunnel.Not(a, bitfunnel.Unigram(a, term.NewTerm("world", 1, 0))),
//	    )
//	}, 64, 16)
//
// # Treatments
//
// PrivateRank0 gives every term its own rank-0 row: maximum precision,
// maximum memory. PrivateSharedRank0 adds a pool of shared rank-0 rows for
// infrequent terms, trading a little query-time ambiguity for density.
// PrivateSharedRank0And3 further moves frequent terms' shared rows to
// rank 3, shrinking the row words a query for a common term must read.
package bitfunnel
