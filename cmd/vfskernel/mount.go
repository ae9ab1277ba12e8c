package main

import (
	"fmt"

	"github.com/cloudnative-vfs/vfskernel/cfg"
	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/folderfs"
	"github.com/cloudnative-vfs/vfskernel/internal/lockedfs"
	"github.com/cloudnative-vfs/vfskernel/internal/mirror"
	"github.com/cloudnative-vfs/vfskernel/internal/overlay"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
	"github.com/cloudnative-vfs/vfskernel/internal/vfskv"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsmount"
)

// buildVFS turns a cfg.Config's Mounts map into a live vfsmount.VFS,
// instantiating one backend tree per mount point the way gcsfuse's root
// command turns flags into a single bucket handle.
func buildVFS(c cfg.Config, clk clock.Clock) (*vfsmount.VFS, error) {
	rootBC, ok := c.Mounts["/"]
	if !ok {
		rootBC = cfg.BackendConfig{Backend: cfg.BackendMemory}
	}
	root, err := buildBackend("/", rootBC, clk)
	if err != nil {
		return nil, fmt.Errorf("mount \"/\": %w", err)
	}

	vfs := vfsmount.NewVFS(root)
	mounts := map[string]vfsfs.FileSystem{"/": root}
	for point, bc := range c.Mounts {
		if point == "/" {
			continue
		}
		fs, err := buildBackend(point, bc, clk)
		if err != nil {
			return nil, fmt.Errorf("mount %q: %w", point, err)
		}
		mounts[point] = fs
	}
	if err := vfs.Initialize(mounts); err != nil {
		return nil, err
	}
	return vfs, nil
}

// buildBackend recursively instantiates one backend and any backends it
// composes (overlay's lower/upper, mirror's sync/async, folder/locked's
// wrapped backend).
func buildBackend(point string, bc cfg.BackendConfig, clk clock.Clock) (vfsfs.SyncFileSystem, error) {
	switch bc.Backend {
	case cfg.BackendMemory, "":
		store := vfskv.NewMemStore(point)
		return vfskv.NewEngine(point, store, clk)

	case cfg.BackendOverlay:
		lower, err := buildBackend(point+"/lower", *bc.Lower, clk)
		if err != nil {
			return nil, err
		}
		upper, err := buildBackend(point+"/upper", *bc.Upper, clk)
		if err != nil {
			return nil, err
		}
		return overlay.New(lower, upper, clk)

	case cfg.BackendMirror:
		sync, err := buildBackend(point+"/sync", *bc.Lower, clk)
		if err != nil {
			return nil, err
		}
		async, err := buildBackend(point+"/async", *bc.Upper, clk)
		if err != nil {
			return nil, err
		}
		return mirror.New(sync, async, clk)

	case cfg.BackendFolder:
		inner, err := buildBackend(point+"/wrapped", *bc.Wrapped, clk)
		if err != nil {
			return nil, err
		}
		return folderfs.New(inner, bc.Folder)

	case cfg.BackendLocked:
		inner, err := buildBackend(point+"/wrapped", *bc.Wrapped, clk)
		if err != nil {
			return nil, err
		}
		return lockedfs.NewLockedFS(inner), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", bc.Backend)
	}
}
