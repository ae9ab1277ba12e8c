package stat

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cloudnative-vfs/vfskernel/internal/cred"
)

// RootID is the fixed inode id of the filesystem root.
const RootID = "/"

// Inode is the on-disk metadata record for a file or directory. Its
// companion data blob is stored separately, keyed by Inode.ID.
type Inode struct {
	ID      string
	Size    uint32
	Mode    uint16
	AtimeMs float64
	MtimeMs float64
	CtimeMs float64
	UID     uint32
	GID     uint32
}

// ToStats projects the inode into a Stats record, deriving BirthtimeMs
// from CtimeMs (the engines in this kernel do not track birthtime
// separately from creation-time ctime).
func (n Inode) ToStats() Stats {
	return Stats{
		Size:        n.Size,
		Mode:        uint32(n.Mode),
		AtimeMs:     n.AtimeMs,
		MtimeMs:     n.MtimeMs,
		CtimeMs:     n.CtimeMs,
		BirthtimeMs: n.CtimeMs,
		UID:         n.UID,
		GID:         n.GID,
	}
}

// Update copies size, mode, the three timestamps, uid and gid from s into n and
// reports whether anything actually changed, so callers can skip writing
// an unchanged inode record back to the store.
func (n *Inode) Update(s Stats) (changed bool) {
	if n.Size != s.Size {
		n.Size = s.Size
		changed = true
	}
	if uint32(n.Mode) != s.Mode {
		n.Mode = uint16(s.Mode)
		changed = true
	}
	if n.AtimeMs != s.AtimeMs {
		n.AtimeMs = s.AtimeMs
		changed = true
	}
	if n.MtimeMs != s.MtimeMs {
		n.MtimeMs = s.MtimeMs
		changed = true
	}
	if n.CtimeMs != s.CtimeMs {
		n.CtimeMs = s.CtimeMs
		changed = true
	}
	if n.UID != s.UID {
		n.UID = s.UID
		changed = true
	}
	if n.GID != s.GID {
		n.GID = s.GID
		changed = true
	}
	return changed
}

// IsFile reports whether the inode's type bits select a regular file.
func (n Inode) IsFile() bool { return uint32(n.Mode)&TypeMask == TypeFile }

// IsDirectory reports whether the inode's type bits select a directory.
func (n Inode) IsDirectory() bool { return uint32(n.Mode)&TypeMask == TypeDirectory }

// IsSymlink reports whether the inode's type bits select a symbolic link.
func (n Inode) IsSymlink() bool { return uint32(n.Mode)&TypeMask == TypeSymlink }

// Access bits, used with CheckAccess.
const (
	Read  = 0o4
	Write = 0o2
	Exec  = 0o1
)

// CheckAccess performs a POSIX permission check: does c have all of the
// `want` bits against n, given n's owning uid/gid and permission bits?
// Root (euid 0) always passes.
func (n Inode) CheckAccess(c cred.Cred, want uint32) bool {
	if c.IsRoot() {
		return true
	}
	perm := uint32(n.Mode) & PermMask
	var shift uint
	switch {
	case c.EUID == n.UID:
		shift = 6
	case c.EGID == n.GID:
		shift = 3
	default:
		shift = 0
	}
	bits := (perm >> shift) & 0o7
	return bits&want == want
}

// inodeWireFixedLen is the fixed-size prefix of the inode wire encoding:
// u32 size, u16 mode, f64 atime, f64 mtime, f64 ctime, u32 uid, u32 gid
// (4+2+8+8+8+4+4 = 38), followed by the utf-8 id.
const inodeWireFixedLen = 38

// Serialize encodes n per §3/§6: the 38-byte fixed record followed by the
// utf-8 bytes of n.ID.
func (n Inode) Serialize() []byte {
	idBytes := []byte(n.ID)
	buf := make([]byte, inodeWireFixedLen+len(idBytes))
	binary.LittleEndian.PutUint32(buf[0:4], n.Size)
	binary.LittleEndian.PutUint16(buf[4:6], n.Mode)
	binary.LittleEndian.PutUint64(buf[6:14], math.Float64bits(n.AtimeMs))
	binary.LittleEndian.PutUint64(buf[14:22], math.Float64bits(n.MtimeMs))
	binary.LittleEndian.PutUint64(buf[22:30], math.Float64bits(n.CtimeMs))
	binary.LittleEndian.PutUint32(buf[30:34], n.UID)
	binary.LittleEndian.PutUint32(buf[34:38], n.GID)
	copy(buf[38:], idBytes)
	return buf
}

// DeserializeInode decodes the wire form produced by Serialize.
func DeserializeInode(b []byte) (Inode, error) {
	if len(b) < inodeWireFixedLen {
		return Inode{}, fmt.Errorf("stat: truncated inode payload (got %d bytes, want at least %d)", len(b), inodeWireFixedLen)
	}
	var n Inode
	n.Size = binary.LittleEndian.Uint32(b[0:4])
	n.Mode = binary.LittleEndian.Uint16(b[4:6])
	n.AtimeMs = math.Float64frombits(binary.LittleEndian.Uint64(b[6:14]))
	n.MtimeMs = math.Float64frombits(binary.LittleEndian.Uint64(b[14:22]))
	n.CtimeMs = math.Float64frombits(binary.LittleEndian.Uint64(b[22:30]))
	n.UID = binary.LittleEndian.Uint32(b[30:34])
	n.GID = binary.LittleEndian.Uint32(b[34:38])
	n.ID = string(b[38:])
	return n, nil
}
