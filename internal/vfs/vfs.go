// Package vfs implements Component E: a per-app virtual filesystem mounted
// from the on-disk archive format (Component B). Guest modules see a single
// tree rooted at their app's VFS file, with package contents mounted
// read-only beneath /lib/<module_name>/ and a writable region elsewhere in
// the tree for persistent state.
package vfs

import (
	"sync"

	"github.com/input-output-hk/hermes-sub003/internal/archive"
	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// PermissionLevel tags a mounted path as read-only or writable.
type PermissionLevel int

const (
	Read PermissionLevel = iota
	ReadWrite
)

// LibDir is the reserved subtree under which every module's files are
// mounted; guest apps may never write beneath it (spec.md §4.4 invariant ii).
const LibDir = "lib"

type opKind int

const (
	opMountFile opKind = iota
	opMountDir
	opCreateDir
)

type mountOp struct {
	kind       opKind
	vfsPath    string
	perm       PermissionLevel
	srcArchive *archive.File // mount ops only
	srcPath    string        // mount ops only
}

// VfsBootstrapper records a sequence of mount/create operations to apply
// against a fresh or existing VFS file. Operations execute in the order
// they were recorded.
type VfsBootstrapper struct {
	vfsPath string
	ops     []mountOp
	seen    map[string]bool
}

// NewBootstrapper begins constructing the VFS file at vfsPath.
func NewBootstrapper(vfsPath string) *VfsBootstrapper {
	return &VfsBootstrapper{vfsPath: vfsPath, seen: make(map[string]bool)}
}

// MountFile records mounting a single dataset from src at srcPath into the
// VFS at dstPath.
func (b *VfsBootstrapper) MountFile(dstPath string, perm PermissionLevel, src *archive.File, srcPath string) error {
	if err := b.claim(dstPath); err != nil {
		return err
	}
	b.ops = append(b.ops, mountOp{kind: opMountFile, vfsPath: dstPath, perm: perm, srcArchive: src, srcPath: srcPath})
	return nil
}

// MountDir records mounting an entire group subtree from src rooted at
// srcPath into the VFS at dstPath, preserving its internal structure.
func (b *VfsBootstrapper) MountDir(dstPath string, perm PermissionLevel, src *archive.File, srcPath string) error {
	if err := b.claim(dstPath); err != nil {
		return err
	}
	b.ops = append(b.ops, mountOp{kind: opMountDir, vfsPath: dstPath, perm: perm, srcArchive: src, srcPath: srcPath})
	return nil
}

// CreateDir records creating an empty writable group at dstPath, used for
// per-app persistent-state directories outside /lib.
func (b *VfsBootstrapper) CreateDir(dstPath string, perm PermissionLevel) error {
	if err := b.claim(dstPath); err != nil {
		return err
	}
	b.ops = append(b.ops, mountOp{kind: opCreateDir, vfsPath: dstPath, perm: perm})
	return nil
}

func (b *VfsBootstrapper) claim(path string) error {
	if b.seen[path] {
		return herrors.Wrapf(herrors.ErrMisuse, "VFS path %s already targeted by another mount operation", path)
	}
	b.seen[path] = true
	return nil
}

// Bootstrap opens or creates the VFS file and executes every recorded
// operation in order, then commits (spec.md §4.4 steps 1-4).
func (b *VfsBootstrapper) Bootstrap() (*Handle, error) {
	mode := archive.ReadWrite
	f, err := archive.Open(b.vfsPath, archive.CreateNew)
	if err != nil {
		f, err = archive.Open(b.vfsPath, mode)
	}
	if err != nil {
		return nil, herrors.Wrap(err, "open VFS file")
	}

	if _, err := f.CreateGroup(LibDir); err != nil {
		return nil, herrors.Wrap(err, "reserve /lib subtree")
	}

	perms := make(map[string]PermissionLevel)
	for _, op := range b.ops {
		switch op.kind {
		case opMountFile:
			if err := f.MountReference(op.vfsPath, op.srcArchive, op.srcPath); err != nil {
				return nil, herrors.Wrapf(err, "mount file %s", op.vfsPath)
			}
		case opMountDir:
			if err := mountDirTree(f, op.vfsPath, op.srcArchive, op.srcPath); err != nil {
				return nil, herrors.Wrapf(err, "mount dir %s", op.vfsPath)
			}
		case opCreateDir:
			if _, err := f.CreateGroup(op.vfsPath); err != nil {
				return nil, herrors.Wrapf(err, "create dir %s", op.vfsPath)
			}
		}
		perms[op.vfsPath] = op.perm
	}

	return &Handle{f: f, perms: perms}, nil
}

func mountDirTree(dst *archive.File, dstPrefix string, src *archive.File, srcPrefix string) error {
	g, err := src.OpenGroup(srcPrefix)
	if err != nil {
		return err
	}
	if _, err := dst.CreateGroup(dstPrefix); err != nil {
		return err
	}
	for _, c := range g.Children() {
		srcChild := srcPrefix + "/" + c.Name
		dstChild := dstPrefix + "/" + c.Name
		if c.Kind == archive.KindGroup {
			if err := mountDirTree(dst, dstChild, src, srcChild); err != nil {
				return err
			}
			continue
		}
		if err := dst.MountReference(dstChild, src, srcChild); err != nil {
			return err
		}
	}
	return nil
}

// Handle is a cheap-to-clone, thread-shareable reference to a bootstrapped
// VFS (spec.md §4.4 invariant iv). Cloning shares the same underlying
// archive.File, which is itself internally synchronized.
type Handle struct {
	mu    sync.RWMutex
	f     *archive.File
	perms map[string]PermissionLevel
}

// Clone returns a cheap copy of the handle sharing the same backing file.
func (h *Handle) Clone() *Handle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return &Handle{f: h.f, perms: h.perms}
}

// Read returns the bytes stored at path, following mount references
// transparently (spec.md §4.4 invariant iii).
func (h *Handle) Read(path string) ([]byte, error) {
	return h.f.ReadDataset(path)
}

// Write stores bytes at path, rejecting writes under the reserved /lib
// subtree and to any path mounted with Read permission.
func (h *Handle) Write(path string, data []byte) error {
	if err := h.checkWritable(path); err != nil {
		return err
	}
	if err := h.f.CreateDataset(path, data, archive.None); err != nil {
		if err == archive.ErrAlreadyExists {
			return h.f.OverwriteDataset(path, data)
		}
		return err
	}
	return nil
}

func (h *Handle) checkWritable(path string) error {
	if path == LibDir || startsWithSegment(path, LibDir) {
		return herrors.Wrapf(herrors.ErrMisuse, "%s is under the reserved /lib subtree", path)
	}
	h.mu.RLock()
	perm, explicit := h.perms[path]
	h.mu.RUnlock()
	if explicit && perm == Read {
		return herrors.Wrapf(herrors.ErrMisuse, "%s was mounted read-only", path)
	}
	return nil
}

func startsWithSegment(path, seg string) bool {
	if len(path) < len(seg) {
		return false
	}
	if path[:len(seg)] != seg {
		return false
	}
	return len(path) == len(seg) || path[len(seg)] == '/'
}

// Close commits and releases the underlying archive file.
func (h *Handle) Close() error { return h.f.Close() }
