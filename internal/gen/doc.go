// Package gen provides the default value generator: it turns a generation
// hint plus parameters into a concrete fake value.
//
// All randomness flows through the single *rand.Rand injected at
// construction, so a fixed seed reproduces identical value sequences. The
// generator holds no other state.
package gen
