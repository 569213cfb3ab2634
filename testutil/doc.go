// Package testutil provides testing utilities for colframe.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Values
//
//	rng := testutil.NewRNG(seed)
//	ints := rng.Ints(1000, 0, 100)           // int values in [0, 100)
//	col := rng.Values(codec.KindString, 50)  // random strings
//
// # Plans
//
// MemSource is an in-memory plan.Source, and Evaluate materializes a plan
// over MemSources row by row. Evaluate is a reference implementation used to
// prove that plan rewrites do not change results.
package testutil
