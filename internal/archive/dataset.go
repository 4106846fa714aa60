package archive

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// CreateDataset stores bytes at path with the given compression, creating
// intermediate groups as needed.
func (f *File) CreateDataset(path string, data []byte, comp Compression) error {
	parts, err := normalizePath(path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return herrors.Wrapf(herrors.ErrMisuse, "dataset path must not be empty")
	}

	payload := data
	if comp == Zstd9Chunked {
		payload, err = f.pool.compress(data)
		if err != nil {
			return herrors.Wrap(err, "compress dataset")
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.root
	for _, seg := range parts[:len(parts)-1] {
		child, ok := cur.Children[seg]
		if !ok {
			child = newGroupNode()
			cur.Children[seg] = child
		} else if child.Kind != KindGroup {
			return herrors.Wrapf(herrors.ErrMisuse, "%s is a dataset, not a group", path)
		}
		cur = child
	}
	last := parts[len(parts)-1]
	if _, exists := cur.Children[last]; exists {
		return ErrAlreadyExists
	}
	off := int64(len(f.dataBuf))
	f.dataBuf = append(f.dataBuf, payload...)
	cur.Children[last] = &node{
		Kind:        KindDataset,
		Compression: comp,
		Offset:      off,
		Length:      int64(len(payload)),
		RawLength:   int64(len(data)),
	}
	return nil
}

// OverwriteDataset replaces the bytes stored at path, preserving its
// existing compression setting. Unlike CreateDataset, it does not error
// when path already exists.
func (f *File) OverwriteDataset(path string, data []byte) error {
	n, err := f.resolveDataset(path)
	if err != nil {
		return err
	}
	comp := n.Compression
	if err := f.Delete(path); err != nil {
		return err
	}
	return f.CreateDataset(path, data, comp)
}

// ReadDataset returns the decompressed bytes stored at path, following a
// mount Reference transparently if present (spec.md §4.4 invariant iii).
func (f *File) ReadDataset(path string) ([]byte, error) {
	n, err := f.resolveDataset(path)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	raw := append([]byte(nil), f.dataBuf[n.Offset:n.Offset+n.Length]...)
	comp := n.Compression
	f.mu.RUnlock()
	if comp == Zstd9Chunked {
		out, err := decompressZstd(raw)
		if err != nil {
			return nil, herrors.Wrap(err, "decompress dataset")
		}
		return out, nil
	}
	return raw, nil
}

func (f *File) resolveDataset(path string) (*node, error) {
	parts, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	cur := f.root
	for _, seg := range parts {
		child, ok := cur.Children[seg]
		if !ok {
			f.mu.RUnlock()
			return nil, herrors.Wrapf(herrors.ErrResourceNotFound, "dataset %s not found", path)
		}
		cur = child
	}
	f.mu.RUnlock()
	if cur.Kind != KindDataset {
		return nil, herrors.Wrapf(herrors.ErrMisuse, "%s is a group, not a dataset", path)
	}
	if cur.Reference != "" {
		return f.resolveDataset(cur.Reference)
	}
	return cur, nil
}

// ByteReader returns a seekable reader over the (decompressed) dataset
// bytes at path.
func (f *File) ByteReader(path string) (io.ReadSeeker, error) {
	b, err := f.ReadDataset(path)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// MountReference creates a dataset at dstPath whose bytes are read from
// srcPath (possibly in a different open File), used by the VFS bootstrapper
// to mount package contents. The source bytes are copied into f at mount
// time: Hermes packages are read-only once signed, so there is no need to
// track cross-file references after mount.
func (f *File) MountReference(dstPath string, src *File, srcPath string) error {
	data, err := src.ReadDataset(srcPath)
	if err != nil {
		return herrors.Wrapf(err, "read mount source %s", srcPath)
	}
	srcNode, err := src.resolveDataset(srcPath)
	if err != nil {
		return err
	}
	comp := None
	if srcNode.Compression == Zstd9Chunked {
		comp = Zstd9Chunked
	}
	return f.CreateDataset(dstPath, data, comp)
}

func decompressZstd(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(b, nil)
}
