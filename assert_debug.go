//go:build tupledebug

package tuple

import "fmt"

// assertf panics with a formatted message if cond is false. Only compiled
// into tupledebug builds; see assert_release.go for the default no-op.
// Spec §7 treats invariant violations (writing without the lock, locking a
// deleted node, and the like) as programming errors: "trip an assertion in
// checked builds, undefined in release."
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
