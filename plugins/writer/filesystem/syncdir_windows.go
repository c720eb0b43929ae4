//go:build windows

package filesystem

// syncDir is a no-op on Windows; directory fsync is not generally available.
func syncDir(string) error { return nil }
