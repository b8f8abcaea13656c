//go:build !linux && !darwin

package bench

// RaiseFileLimit is a no-op outside Linux and macOS.
func RaiseFileLimit() (uint64, error) {
	return 0, nil
}
