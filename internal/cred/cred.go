// Package cred holds the credential record carried on every filesystem
// request for permission checks.
package cred

// RootUID is the credential uid/gid that bypasses permission checks.
const RootUID uint32 = 0

// Cred is the six-field real/saved/effective uid/gid record a caller
// attaches to a request.
type Cred struct {
	UID  uint32
	GID  uint32
	SUID uint32
	SGID uint32
	EUID uint32
	EGID uint32
}

// Root is the credential used for internal operations that must bypass
// permission checks (root bootstrap, administrative tooling).
var Root = Cred{}

// IsRoot reports whether the effective uid of c is the root uid.
func (c Cred) IsRoot() bool {
	return c.EUID == RootUID
}
