// Package clock abstracts wall-clock access so that inode timestamps and
// other time-dependent behavior can be driven deterministically in tests.
package clock

import "time"

// Clock is a source of the current time, injected wherever the kernel
// stamps atime/mtime/ctime/birthtime or needs to schedule a delayed action.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel on which the current time is sent once the
	// given duration has elapsed, mirroring time.After.
	After(d time.Duration) <-chan time.Time
}
