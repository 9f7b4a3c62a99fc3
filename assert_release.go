//go:build !tupledebug

package tuple

// assertf is a no-op in release builds: invariant violations here are
// programming errors, and spec §7 calls their release-build behavior
// undefined rather than a checked, recoverable condition.
func assertf(cond bool, format string, args ...any) {}
