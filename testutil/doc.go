// Package testutil provides testing utilities for rtseg.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source and generators for schema-shaped rows.
//
// # Random Rows
//
//	rng := testutil.NewRNG(seed)
//	gen := testutil.NewRowGenerator(rng, s, testutil.WithNullRate(0.1))
//	r := gen.Next()
//
// # Row Diffs
//
//	if diff := testutil.RowDiff(want, got); diff != "" {
//		t.Fatalf("row mismatch (-want +got):\n%s", diff)
//	}
package testutil
