//go:build !release

package assert

import "fmt"

// Enabled reports whether assertions are compiled in.
const Enabled = true

// That panics with the formatted message when cond is false. Assertions guard programmer errors
// (desynchronized storage, concurrent drains), never recoverable runtime conditions.
func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
