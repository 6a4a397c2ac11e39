//go:build release

package assert

// Enabled reports whether assertions are compiled in.
const Enabled = false

// That is a no-op in release builds.
func That(bool, string, ...any) {} //nolint:goprintffuncname // it's ok
