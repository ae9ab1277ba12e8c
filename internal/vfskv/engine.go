package vfskv

import (
	"encoding/json"
	"errors"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
	"github.com/google/uuid"
)

const maxAllocAttempts = 5

// Engine turns a Store into a full vfsfs.SyncFileSystem (and, trivially,
// vfsfs.FileSystem: Go has no implicit suspension point to distinguish the
// source's separate sync/async engines, see the package doc) by layering
// inode records, JSON directory listings, and path resolution on top of
// three key families: "inode:<id>", "dir:<id>", and "data:<id>".
type Engine struct {
	name        string
	store       Store
	clock       clock.Clock
	readOnly    bool
	synchronous bool

	// cache memoizes full-path resolution to an inode id. It is the
	// optional ingredient that distinguishes an "async" engine (built
	// with a cache, to amortize repeated lookups over a slower backing
	// store) from a "sync" one (built with cache == nil): see NewEngine.
	cache *lru.Cache[string, string]

	// resolveGroup collapses concurrent cache-miss walks for the same
	// path onto a single loadDir sequence, the way a thundering herd of
	// readers hitting an unresolved path would otherwise each pay the
	// full directory-chain cost independently.
	resolveGroup singleflight.Group
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithCache installs a bounded LRU path-resolution cache of size, the
// async engine's optimization absent from the plain sync engine.
func WithCache(size int) Option {
	return func(e *Engine) {
		c, err := lru.New[string, string](size)
		if err == nil {
			e.cache = c
		}
	}
}

// WithSynchronous marks the engine as Metadata().Synchronous. The
// Sync-suffixed methods are available with or without this option.
func WithSynchronous() Option {
	return func(e *Engine) { e.synchronous = true }
}

// WithReadOnly marks the engine read-only; every mutating call returns
// EROFS before touching the store.
func WithReadOnly() Option {
	return func(e *Engine) { e.readOnly = true }
}

func NewEngine(name string, store Store, clk clock.Clock, opts ...Option) (*Engine, error) {
	e := &Engine{name: name, store: store, clock: clk}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.bootstrap(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) Metadata() vfsfs.Metadata {
	return vfsfs.Metadata{
		Name:               e.name,
		ReadOnly:           e.readOnly,
		Synchronous:        e.synchronous,
		SupportsProperties: true,
		SupportsLinks:      true,
	}
}

// --- key helpers -----------------------------------------------------

func inodeKey(id string) string { return "inode:" + id }
func dirKey(id string) string   { return "dir:" + id }
func dataKey(id string) string  { return "data:" + id }

func splitPath(p string) []string {
	clean := path.Clean("/" + p)
	if clean == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(clean, "/"), "/")
}

func normalize(p string) string { return path.Clean("/" + p) }

// --- bootstrap ---------------------------------------------------------

func (e *Engine) bootstrap() error {
	return e.withTx(false, func(tx Transaction) error {
		return e.makeRoot(tx)
	})
}

// makeRoot ensures the root inode and its (possibly empty) listing exist,
// matching §4.G's "root bootstrap" step every engine performs once.
func (e *Engine) makeRoot(tx Transaction) error {
	if _, err := e.loadInode(tx, stat.RootID); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	now := e.nowMs()
	root := stat.Inode{
		ID: stat.RootID, Mode: uint16(stat.TypeDirectory | 0o777),
		AtimeMs: now, MtimeMs: now, CtimeMs: now,
		UID: cred.RootUID, GID: cred.RootUID,
	}
	if err := e.saveInode(tx, root); err != nil {
		return err
	}
	return e.saveDir(tx, stat.RootID, map[string]string{})
}

func (e *Engine) nowMs() float64 { return float64(e.clock.Now().UnixMilli()) }

// --- transaction & storage helpers -------------------------------------

func (e *Engine) withTx(readOnly bool, fn func(tx Transaction) error) error {
	mode := ReadWrite
	if readOnly {
		mode = ReadOnly
	}
	tx, err := e.store.BeginTransaction(mode)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Abort()
		return err
	}
	return tx.Commit()
}

func (e *Engine) loadInode(tx Transaction, id string) (stat.Inode, error) {
	raw, err := tx.Get(inodeKey(id))
	if errors.Is(err, ErrNotFound) {
		return stat.Inode{}, ErrNotFound
	}
	if err != nil {
		return stat.Inode{}, err
	}
	return stat.DeserializeInode(raw)
}

func (e *Engine) saveInode(tx Transaction, n stat.Inode) error {
	_, err := tx.Put(inodeKey(n.ID), n.Serialize(), true)
	return err
}

func (e *Engine) loadDir(tx Transaction, id string) (map[string]string, error) {
	raw, err := tx.Get(dirKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	listing := map[string]string{}
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, verrno.New(verrno.EIO, "corrupt directory listing for inode %q: %v", id, err)
	}
	return listing, nil
}

func (e *Engine) saveDir(tx Transaction, id string, listing map[string]string) error {
	raw, err := json.Marshal(listing)
	if err != nil {
		return err
	}
	_, err = tx.Put(dirKey(id), raw, true)
	return err
}

// --- path resolution ----------------------------------------------------

// resolve walks fullPath from the root, consulting the path cache first
// when one is installed.
func (e *Engine) resolve(tx Transaction, fullPath string) (string, error) {
	norm := normalize(fullPath)
	if norm == "/" {
		return stat.RootID, nil
	}
	if e.cache != nil {
		if id, ok := e.cache.Get(norm); ok {
			return id, nil
		}
	}

	id, err, _ := e.resolveGroup.Do(norm, func() (any, error) {
		segs := splitPath(norm)
		cur := stat.RootID
		visited := map[string]bool{cur: true}
		for _, seg := range segs {
			listing, err := e.loadDir(tx, cur)
			if errors.Is(err, ErrNotFound) {
				return "", verrno.NewPath(verrno.ENOTDIR, fullPath, "not a directory")
			}
			if err != nil {
				return "", err
			}
			child, ok := listing[seg]
			if !ok {
				return "", verrno.NewPath(verrno.ENOENT, fullPath, "no such file or directory")
			}
			if visited[child] {
				return "", verrno.NewPath(verrno.EIO, fullPath, "cycle detected while resolving path")
			}
			visited[child] = true
			cur = child
		}
		return cur, nil
	})
	if err != nil {
		return "", err
	}

	cur := id.(string)
	if e.cache != nil {
		e.cache.Add(norm, cur)
	}
	return cur, nil
}

func (e *Engine) resolveParent(tx Transaction, fullPath string) (parentID, name string, err error) {
	segs := splitPath(fullPath)
	if len(segs) == 0 {
		return "", "", verrno.NewPath(verrno.EINVAL, fullPath, "path has no parent")
	}
	name = segs[len(segs)-1]
	parentPath := "/" + strings.Join(segs[:len(segs)-1], "/")
	parentID, err = e.resolve(tx, parentPath)
	return parentID, name, err
}

// invalidate drops path (and, on a rename, the whole cache, since an
// unknown number of descendant paths shift under it in one move) from the
// resolution cache.
func (e *Engine) invalidate(fullPath string) {
	if e.cache != nil {
		e.cache.Remove(normalize(fullPath))
	}
}

func (e *Engine) invalidateAll() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

// --- inode allocation ----------------------------------------------------

// addNewNode allocates a fresh id for a new directory entry, retrying the
// uuid draw up to maxAllocAttempts times on an (astronomically unlikely)
// collision, writes its inode plus an empty data blob or directory
// listing, and links it into parent's listing under name.
func (e *Engine) addNewNode(tx Transaction, parentID, name string, mode uint16, c cred.Cred) (stat.Inode, error) {
	listing, err := e.loadDir(tx, parentID)
	if err != nil {
		return stat.Inode{}, err
	}
	if _, exists := listing[name]; exists {
		return stat.Inode{}, verrno.NewPath(verrno.EEXIST, name, "file already exists")
	}

	var id string
	for attempt := 0; ; attempt++ {
		candidate := uuid.NewString()
		if _, err := tx.Get(inodeKey(candidate)); errors.Is(err, ErrNotFound) {
			id = candidate
			break
		}
		if attempt == maxAllocAttempts-1 {
			return stat.Inode{}, verrno.New(verrno.EIO, "could not allocate a unique inode id after %d attempts", maxAllocAttempts)
		}
	}

	now := e.nowMs()
	n := stat.Inode{ID: id, Mode: mode, AtimeMs: now, MtimeMs: now, CtimeMs: now, UID: c.EUID, GID: c.EGID}
	if err := e.saveInode(tx, n); err != nil {
		return stat.Inode{}, err
	}
	if n.IsDirectory() {
		if err := e.saveDir(tx, id, map[string]string{}); err != nil {
			return stat.Inode{}, err
		}
	} else {
		if _, err := tx.Put(dataKey(id), []byte{}, true); err != nil {
			return stat.Inode{}, err
		}
	}
	listing[name] = id
	if err := e.saveDir(tx, parentID, listing); err != nil {
		return stat.Inode{}, err
	}
	return n, nil
}

// removeEntry unlinks name from parentID's listing and deletes the target
// inode's own records. Directories must already be empty; the caller
// (rmdir vs unlink) is responsible for rejecting the wrong node type.
func (e *Engine) removeEntry(tx Transaction, parentID, name string) (stat.Inode, error) {
	listing, err := e.loadDir(tx, parentID)
	if err != nil {
		return stat.Inode{}, err
	}
	id, ok := listing[name]
	if !ok {
		return stat.Inode{}, verrno.NewPath(verrno.ENOENT, name, "no such file or directory")
	}
	n, err := e.loadInode(tx, id)
	if err != nil {
		return stat.Inode{}, err
	}
	if n.IsDirectory() {
		children, err := e.loadDir(tx, id)
		if err != nil {
			return stat.Inode{}, err
		}
		if len(children) > 0 {
			return stat.Inode{}, verrno.NewPath(verrno.ENOTEMPTY, name, "directory not empty")
		}
		if err := tx.Del(dirKey(id)); err != nil {
			return stat.Inode{}, err
		}
	} else {
		if err := tx.Del(dataKey(id)); err != nil {
			return stat.Inode{}, err
		}
	}
	if err := tx.Del(inodeKey(id)); err != nil {
		return stat.Inode{}, err
	}
	delete(listing, name)
	if err := e.saveDir(tx, parentID, listing); err != nil {
		return stat.Inode{}, err
	}
	return n, nil
}

func checkAccess(n stat.Inode, c cred.Cred, want uint32, p string) error {
	if !n.CheckAccess(c, want) {
		return verrno.NewPath(verrno.EACCES, p, "permission denied")
	}
	return nil
}

// --- FileSystem / SyncFileSystem surface --------------------------------
//
// Every public method below has an identical Sync-suffixed twin calling
// the same private implementation: this is the collapse described in the
// package doc, not a shortcut. A caller holding an Engine as a
// vfsfs.FileSystem and one holding it as a vfsfs.SyncFileSystem observe
// the same behavior either way.

func (e *Engine) OpenFile(p string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	return e.openFile(p, flag, c)
}
func (e *Engine) OpenFileSync(p string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	return e.openFile(p, flag, c)
}

func (e *Engine) openFile(p string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	var f *vfile.PreloadFile
	err := e.withTx(!flag.IsWritable(), func(tx Transaction) error {
		id, err := e.resolve(tx, p)
		if err != nil {
			return err
		}
		n, err := e.loadInode(tx, id)
		if err != nil {
			return err
		}
		if n.IsDirectory() {
			return verrno.NewPath(verrno.EISDIR, p, "is a directory")
		}
		if err := checkAccess(n, c, flag.ModeBits(), p); err != nil {
			return err
		}
		raw, err := tx.Get(dataKey(id))
		if errors.Is(err, ErrNotFound) {
			raw = nil
		} else if err != nil {
			return err
		}
		f = vfile.New(e.clock, e.syncerFor(id), p, flag, n.ToStats(), append([]byte(nil), raw...))
		return nil
	})
	return f, err
}

func (e *Engine) CreateFile(p string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	return e.createFile(p, flag, mode, c)
}
func (e *Engine) CreateFileSync(p string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	return e.createFile(p, flag, mode, c)
}

func (e *Engine) createFile(p string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	if e.readOnly {
		return nil, verrno.NewPath(verrno.EROFS, p, "filesystem is read-only")
	}
	var f *vfile.PreloadFile
	err := e.withTx(false, func(tx Transaction) error {
		parentID, name, err := e.resolveParent(tx, p)
		if err != nil {
			return err
		}
		parent, err := e.loadInode(tx, parentID)
		if err != nil {
			return err
		}
		if err := checkAccess(parent, c, stat.Write, p); err != nil {
			return err
		}
		n, err := e.addNewNode(tx, parentID, name, uint16(stat.TypeFile|(mode&0o7777)), c)
		if err != nil {
			return err
		}
		e.invalidate(p)
		f = vfile.New(e.clock, e.syncerFor(n.ID), p, flag, n.ToStats(), nil)
		return nil
	})
	return f, err
}

func (e *Engine) Stat(p string, c cred.Cred) (stat.Stats, error)     { return e.stat(p, c) }
func (e *Engine) StatSync(p string, c cred.Cred) (stat.Stats, error) { return e.stat(p, c) }

func (e *Engine) stat(p string, c cred.Cred) (stat.Stats, error) {
	var out stat.Stats
	err := e.withTx(true, func(tx Transaction) error {
		id, err := e.resolve(tx, p)
		if err != nil {
			return err
		}
		n, err := e.loadInode(tx, id)
		if err != nil {
			return err
		}
		out = n.ToStats()
		return nil
	})
	return out, err
}

func (e *Engine) Unlink(p string, c cred.Cred) error     { return e.unlink(p, c) }
func (e *Engine) UnlinkSync(p string, c cred.Cred) error { return e.unlink(p, c) }

func (e *Engine) unlink(p string, c cred.Cred) error {
	if e.readOnly {
		return verrno.NewPath(verrno.EROFS, p, "filesystem is read-only")
	}
	return e.withTx(false, func(tx Transaction) error {
		parentID, name, err := e.resolveParent(tx, p)
		if err != nil {
			return err
		}
		parent, err := e.loadInode(tx, parentID)
		if err != nil {
			return err
		}
		if err := checkAccess(parent, c, stat.Write, p); err != nil {
			return err
		}
		id, ok, err := e.peek(tx, parentID, name)
		if err != nil {
			return err
		}
		if ok {
			n, err := e.loadInode(tx, id)
			if err == nil && n.IsDirectory() {
				return verrno.NewPath(verrno.EISDIR, p, "cannot unlink a directory")
			}
		}
		if _, err := e.removeEntry(tx, parentID, name); err != nil {
			return err
		}
		e.invalidate(p)
		return nil
	})
}

func (e *Engine) peek(tx Transaction, parentID, name string) (string, bool, error) {
	listing, err := e.loadDir(tx, parentID)
	if err != nil {
		return "", false, err
	}
	id, ok := listing[name]
	return id, ok, nil
}

func (e *Engine) Mkdir(p string, mode uint32, c cred.Cred) error     { return e.mkdir(p, mode, c) }
func (e *Engine) MkdirSync(p string, mode uint32, c cred.Cred) error { return e.mkdir(p, mode, c) }

func (e *Engine) mkdir(p string, mode uint32, c cred.Cred) error {
	if e.readOnly {
		return verrno.NewPath(verrno.EROFS, p, "filesystem is read-only")
	}
	return e.withTx(false, func(tx Transaction) error {
		parentID, name, err := e.resolveParent(tx, p)
		if err != nil {
			return err
		}
		parent, err := e.loadInode(tx, parentID)
		if err != nil {
			return err
		}
		if err := checkAccess(parent, c, stat.Write, p); err != nil {
			return err
		}
		_, err = e.addNewNode(tx, parentID, name, uint16(stat.TypeDirectory|(mode&0o7777)), c)
		if err == nil {
			e.invalidate(p)
		}
		return err
	})
}

func (e *Engine) Rmdir(p string, c cred.Cred) error     { return e.rmdir(p, c) }
func (e *Engine) RmdirSync(p string, c cred.Cred) error { return e.rmdir(p, c) }

func (e *Engine) rmdir(p string, c cred.Cred) error {
	if e.readOnly {
		return verrno.NewPath(verrno.EROFS, p, "filesystem is read-only")
	}
	if normalize(p) == "/" {
		return verrno.NewPath(verrno.EBUSY, p, "cannot remove the root directory")
	}
	return e.withTx(false, func(tx Transaction) error {
		parentID, name, err := e.resolveParent(tx, p)
		if err != nil {
			return err
		}
		parent, err := e.loadInode(tx, parentID)
		if err != nil {
			return err
		}
		if err := checkAccess(parent, c, stat.Write, p); err != nil {
			return err
		}
		id, ok, err := e.peek(tx, parentID, name)
		if err != nil {
			return err
		}
		if ok {
			n, err := e.loadInode(tx, id)
			if err == nil && !n.IsDirectory() {
				return verrno.NewPath(verrno.ENOTDIR, p, "not a directory")
			}
		}
		if _, err := e.removeEntry(tx, parentID, name); err != nil {
			return err
		}
		e.invalidate(p)
		return nil
	})
}

func (e *Engine) Readdir(p string, c cred.Cred) ([]string, error) {
	return e.readdir(p, c)
}
func (e *Engine) ReaddirSync(p string, c cred.Cred) ([]string, error) {
	return e.readdir(p, c)
}

func (e *Engine) readdir(p string, c cred.Cred) ([]string, error) {
	var names []string
	err := e.withTx(true, func(tx Transaction) error {
		id, err := e.resolve(tx, p)
		if err != nil {
			return err
		}
		n, err := e.loadInode(tx, id)
		if err != nil {
			return err
		}
		if !n.IsDirectory() {
			return verrno.NewPath(verrno.ENOTDIR, p, "not a directory")
		}
		if err := checkAccess(n, c, stat.Read, p); err != nil {
			return err
		}
		listing, err := e.loadDir(tx, id)
		if err != nil {
			return err
		}
		names = make([]string, 0, len(listing))
		for name := range listing {
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

func (e *Engine) Rename(oldPath, newPath string, c cred.Cred) error {
	return e.rename(oldPath, newPath, c)
}
func (e *Engine) RenameSync(oldPath, newPath string, c cred.Cred) error {
	return e.rename(oldPath, newPath, c)
}

// rename moves oldPath to newPath, refusing (EBUSY) to move a directory
// into one of its own descendants, and reuses a single listing read/write
// when old and new share a parent rather than the general two-listing
// path. The resolution cache is purged rather than patched: an unknown
// number of descendant paths move under oldPath in the same step.
func (e *Engine) rename(oldPath, newPath string, c cred.Cred) error {
	if e.readOnly {
		return verrno.NewPath(verrno.EROFS, oldPath, "filesystem is read-only")
	}
	oldNorm, newNorm := normalize(oldPath), normalize(newPath)
	if oldNorm == "/" {
		return verrno.NewPath(verrno.EBUSY, oldPath, "cannot rename the root directory")
	}
	return e.withTx(false, func(tx Transaction) error {
		srcID, err := e.resolve(tx, oldNorm)
		if err != nil {
			return err
		}
		if strings.HasPrefix(newNorm+"/", oldNorm+"/") && newNorm != oldNorm {
			return verrno.NewPath(verrno.EBUSY, newPath, "cannot move a directory into its own descendant")
		}

		oldParentID, oldName, err := e.resolveParent(tx, oldNorm)
		if err != nil {
			return err
		}
		newParentID, newName, err := e.resolveParent(tx, newNorm)
		if err != nil {
			return err
		}
		oldParent, err := e.loadInode(tx, oldParentID)
		if err != nil {
			return err
		}
		if err := checkAccess(oldParent, c, stat.Write, oldPath); err != nil {
			return err
		}

		if oldParentID == newParentID {
			listing, err := e.loadDir(tx, oldParentID)
			if err != nil {
				return err
			}
			if _, ok := listing[oldName]; !ok {
				return verrno.NewPath(verrno.ENOENT, oldPath, "no such file or directory")
			}
			if destID, ok := listing[newName]; ok && newName != oldName {
				if err := e.replaceRenameDestination(tx, destID, newPath); err != nil {
					return err
				}
			}
			listing[newName] = listing[oldName]
			if newName != oldName {
				delete(listing, oldName)
			}
			if err := e.saveDir(tx, oldParentID, listing); err != nil {
				return err
			}
		} else {
			newParent, err := e.loadInode(tx, newParentID)
			if err != nil {
				return err
			}
			if err := checkAccess(newParent, c, stat.Write, newPath); err != nil {
				return err
			}
			oldListing, err := e.loadDir(tx, oldParentID)
			if err != nil {
				return err
			}
			newListing, err := e.loadDir(tx, newParentID)
			if err != nil {
				return err
			}
			if destID, ok := newListing[newName]; ok {
				if err := e.replaceRenameDestination(tx, destID, newPath); err != nil {
					return err
				}
			}
			newListing[newName] = srcID
			delete(oldListing, oldName)
			if err := e.saveDir(tx, newParentID, newListing); err != nil {
				return err
			}
			if err := e.saveDir(tx, oldParentID, oldListing); err != nil {
				return err
			}
		}

		n, err := e.loadInode(tx, srcID)
		if err == nil {
			n.CtimeMs = e.nowMs()
			_ = e.saveInode(tx, n)
		}
		e.invalidateAll()
		return nil
	})
}

// replaceRenameDestination deletes newPath's existing target before rename
// overwrites its directory entry. A directory destination is never
// implicitly replaced; a file destination's inode and data blob are
// deleted so the overwrite does not orphan storage.
func (e *Engine) replaceRenameDestination(tx Transaction, destID, newPath string) error {
	n, err := e.loadInode(tx, destID)
	if err != nil {
		return err
	}
	if n.IsDirectory() {
		return verrno.NewPath(verrno.EPERM, newPath, "cannot rename onto an existing directory")
	}
	if err := tx.Del(dataKey(destID)); err != nil {
		return err
	}
	return tx.Del(inodeKey(destID))
}

func (e *Engine) Link(existingPath, newPath string, c cred.Cred) error {
	return e.link(existingPath, newPath, c)
}
func (e *Engine) LinkSync(existingPath, newPath string, c cred.Cred) error {
	return e.link(existingPath, newPath, c)
}

// link adds a second directory entry naming the same inode id as
// existingPath, the KV engine's natural notion of a hard link: no
// separate link-count field is kept, since every entry pointing at an id
// is, by construction, a valid name for it.
func (e *Engine) link(existingPath, newPath string, c cred.Cred) error {
	if e.readOnly {
		return verrno.NewPath(verrno.EROFS, existingPath, "filesystem is read-only")
	}
	return e.withTx(false, func(tx Transaction) error {
		id, err := e.resolve(tx, existingPath)
		if err != nil {
			return err
		}
		n, err := e.loadInode(tx, id)
		if err != nil {
			return err
		}
		if n.IsDirectory() {
			return verrno.NewPath(verrno.EPERM, existingPath, "cannot hard-link a directory")
		}
		parentID, name, err := e.resolveParent(tx, newPath)
		if err != nil {
			return err
		}
		parent, err := e.loadInode(tx, parentID)
		if err != nil {
			return err
		}
		if err := checkAccess(parent, c, stat.Write, newPath); err != nil {
			return err
		}
		listing, err := e.loadDir(tx, parentID)
		if err != nil {
			return err
		}
		if _, ok := listing[name]; ok {
			return verrno.NewPath(verrno.EEXIST, newPath, "destination already exists")
		}
		listing[name] = id
		if err := e.saveDir(tx, parentID, listing); err != nil {
			return err
		}
		e.invalidate(newPath)
		return nil
	})
}

func (e *Engine) Chmod(p string, mode uint32, c cred.Cred) error     { return e.chmod(p, mode, c) }
func (e *Engine) ChmodSync(p string, mode uint32, c cred.Cred) error { return e.chmod(p, mode, c) }

func (e *Engine) chmod(p string, mode uint32, c cred.Cred) error {
	if e.readOnly {
		return verrno.NewPath(verrno.EROFS, p, "filesystem is read-only")
	}
	return e.withTx(false, func(tx Transaction) error {
		id, err := e.resolve(tx, p)
		if err != nil {
			return err
		}
		n, err := e.loadInode(tx, id)
		if err != nil {
			return err
		}
		if !c.IsRoot() && c.EUID != n.UID {
			return verrno.NewPath(verrno.EPERM, p, "only the owner or root may chmod")
		}
		n.Update(n.ToStats().Chmod(mode))
		n.CtimeMs = e.nowMs()
		return e.saveInode(tx, n)
	})
}

func (e *Engine) Chown(p string, uid, gid float64, c cred.Cred) error {
	return e.chown(p, uid, gid, c)
}
func (e *Engine) ChownSync(p string, uid, gid float64, c cred.Cred) error {
	return e.chown(p, uid, gid, c)
}

func (e *Engine) chown(p string, uid, gid float64, c cred.Cred) error {
	if e.readOnly {
		return verrno.NewPath(verrno.EROFS, p, "filesystem is read-only")
	}
	return e.withTx(false, func(tx Transaction) error {
		id, err := e.resolve(tx, p)
		if err != nil {
			return err
		}
		n, err := e.loadInode(tx, id)
		if err != nil {
			return err
		}
		if !c.IsRoot() {
			return verrno.NewPath(verrno.EPERM, p, "only root may chown")
		}
		n.Update(n.ToStats().Chown(uid, gid))
		n.CtimeMs = e.nowMs()
		return e.saveInode(tx, n)
	})
}

func (e *Engine) Utimes(p string, atimeMs, mtimeMs float64, c cred.Cred) error {
	return e.utimes(p, atimeMs, mtimeMs, c)
}
func (e *Engine) UtimesSync(p string, atimeMs, mtimeMs float64, c cred.Cred) error {
	return e.utimes(p, atimeMs, mtimeMs, c)
}

func (e *Engine) utimes(p string, atimeMs, mtimeMs float64, c cred.Cred) error {
	if e.readOnly {
		return verrno.NewPath(verrno.EROFS, p, "filesystem is read-only")
	}
	return e.withTx(false, func(tx Transaction) error {
		id, err := e.resolve(tx, p)
		if err != nil {
			return err
		}
		n, err := e.loadInode(tx, id)
		if err != nil {
			return err
		}
		if !c.IsRoot() && c.EUID != n.UID {
			if err := checkAccess(n, c, stat.Write, p); err != nil {
				return err
			}
		}
		n.AtimeMs, n.MtimeMs, n.CtimeMs = atimeMs, mtimeMs, e.nowMs()
		return e.saveInode(tx, n)
	})
}

// syncerFor builds the vfile.Syncer a PreloadFile opened against id uses
// to flush its buffer and stat record back into the store.
func (e *Engine) syncerFor(id string) vfile.Syncer {
	return vfile.SyncerFunc(func(p string, data []byte, st stat.Stats) error {
		if e.readOnly {
			return verrno.NewPath(verrno.EROFS, p, "filesystem is read-only")
		}
		return e.withTx(false, func(tx Transaction) error {
			n, err := e.loadInode(tx, id)
			if err != nil {
				return err
			}
			n.Update(st)
			if err := e.saveInode(tx, n); err != nil {
				return err
			}
			_, err = tx.Put(dataKey(id), append([]byte(nil), data...), true)
			return err
		})
	})
}

var _ vfsfs.SyncFileSystem = (*Engine)(nil)
