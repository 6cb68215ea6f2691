// Package testutil provides testing utilities for latchkv.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG and key and workload generators.
//
// # Keys
//
//	rng := testutil.NewRNG(seed)
//	hot := rng.ZipfKeys(10_000, 1_000, 1.2) // skewed access pattern
//	k := testutil.Key(hot[0])                // 8-byte key
//
// # Workloads
//
//	ops := rng.Workload(n, keySpace, 1.1, testutil.Mix{Read: 0.5, RMW: 0.5})
package testutil
