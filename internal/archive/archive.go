// Package archive implements Component B: a single-file, hierarchical,
// compressed container of groups (directories) and datasets (byte blobs),
// in the spirit of an HDF5 file. It is the storage substrate beneath
// module/application packages (Component D) and the VFS (Component E).
package archive

import (
	"os"
	"path"
	"strings"
	"sync"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Mode selects how an archive file is opened.
type Mode int

const (
	Read Mode = iota
	ReadWrite
	CreateNew
)

// Compression selects a dataset's on-disk compression.
type Compression int

const (
	None Compression = iota
	Zstd9Chunked
)

// NodeKind tags a child as a group or a dataset.
type NodeKind int

const (
	KindGroup NodeKind = iota
	KindDataset
)

// node is the on-disk (JSON-indexed) representation of one archive member.
type node struct {
	Kind        NodeKind            `json:"kind"`
	Children    map[string]*node    `json:"children,omitempty"`
	Compression Compression         `json:"compression,omitempty"`
	// Offset/Length locate the member's bytes within the data section of
	// the file. Reference, when set, names another path in the same
	// archive whose bytes this dataset reads; MountReference copies bytes
	// and does not set it.
	Offset    int64  `json:"offset,omitempty"`
	Length    int64  `json:"length,omitempty"`
	RawLength int64  `json:"raw_length,omitempty"`
	Reference string `json:"reference,omitempty"`
}

func newGroupNode() *node {
	return &node{Kind: KindGroup, Children: make(map[string]*node)}
}

// File is an open archive: its root group plus the backing OS file and the
// durability/locking contract from spec.md §4.1 ("one exclusive writer;
// concurrent readers of a read-only-opened file are allowed").
type File struct {
	mu       sync.RWMutex
	path     string
	mode     Mode
	root     *node
	dataBuf  []byte // appended dataset payloads, flushed on Close
	osFile   *os.File
	closed   bool
	pool     *compressorPool
}

// Open opens or creates an archive file at path under mode.
func Open(filePath string, mode Mode) (*File, error) {
	pool, err := globalCompressorPool()
	if err != nil {
		return nil, err
	}
	f := &File{path: filePath, mode: mode, pool: pool}

	switch mode {
	case CreateNew:
		if _, err := os.Stat(filePath); err == nil {
			return nil, herrors.Wrapf(os.ErrExist, "archive %s already exists", filePath)
		}
		f.root = newGroupNode()
		osf, err := os.Create(filePath)
		if err != nil {
			return nil, herrors.Wrap(err, "create archive file")
		}
		f.osFile = osf
	case Read, ReadWrite:
		osf, openErr := os.OpenFile(filePath, osModeFlags(mode), 0o644)
		if openErr != nil {
			if os.IsNotExist(openErr) {
				return nil, herrors.Wrapf(herrors.ErrResourceNotFound, "archive %s not found", filePath)
			}
			return nil, herrors.Wrap(openErr, "open archive file")
		}
		f.osFile = osf
		root, data, err := decodeContainer(osf)
		if err != nil {
			osf.Close()
			return nil, herrors.Wrap(err, "decode archive container")
		}
		f.root = root
		f.dataBuf = data
	}
	return f, nil
}

func osModeFlags(mode Mode) int {
	if mode == ReadWrite {
		return os.O_RDWR
	}
	return os.O_RDONLY
}

// Close commits buffered writes durably and releases the OS file handle.
// Writes are durable on Close, per spec.md §4.1.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.mode != Read {
		if err := f.flushLocked(); err != nil {
			return err
		}
	}
	return f.osFile.Close()
}

func (f *File) flushLocked() error {
	buf, err := encodeContainer(f.root, f.dataBuf)
	if err != nil {
		return herrors.Wrap(err, "encode archive container")
	}
	if _, err := f.osFile.WriteAt(buf, 0); err != nil {
		return herrors.Wrap(err, "write archive container")
	}
	if err := f.osFile.Truncate(int64(len(buf))); err != nil {
		return herrors.Wrap(err, "truncate archive file")
	}
	return f.osFile.Sync()
}

// normalizePath normalizes an archive path: "/" separators, no "..", no
// empty segments (spec.md §4.1).
func normalizePath(p string) ([]string, error) {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return nil, nil
	}
	parts := strings.Split(p, "/")
	for _, seg := range parts {
		if seg == "" || seg == ".." || seg == "." {
			return nil, herrors.Wrapf(herrors.ErrMisuse, "invalid archive path segment %q", seg)
		}
	}
	return parts, nil
}

var (
	ErrNotFound      = herrors.Wrapf(herrors.ErrResourceNotFound, "archive path not found")
	ErrAlreadyExists = herrors.Wrapf(herrors.ErrMisuse, "archive path already exists")
)
