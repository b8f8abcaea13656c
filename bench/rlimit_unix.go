//go:build linux || darwin

package bench

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// darwinOpenMax is OPEN_MAX, the most macOS accepts as a soft limit
// when the hard limit is unlimited.
const darwinOpenMax = 10240

// RaiseFileLimit lifts the soft open-file limit to the hard limit so a
// large pool can hold one database connection per worker. It returns
// the limit now in effect.
func RaiseFileLimit() (uint64, error) {
	var lim unix.Rlimit

	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0, fmt.Errorf("get rlimit: %w", err)
	}

	if lim.Cur >= lim.Max {
		return lim.Cur, nil
	}

	want := lim
	want.Cur = lim.Max

	err := unix.Setrlimit(unix.RLIMIT_NOFILE, &want)
	if err != nil && runtime.GOOS == "darwin" && lim.Cur < darwinOpenMax {
		want.Cur = darwinOpenMax
		err = unix.Setrlimit(unix.RLIMIT_NOFILE, &want)
	}
	if err != nil {
		return 0, fmt.Errorf("set rlimit: %w", err)
	}

	return want.Cur, nil
}
