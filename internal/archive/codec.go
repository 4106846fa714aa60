package archive

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Container layout: [4-byte magic "HMES"][8-byte big-endian index length]
// [JSON index][raw data section]. The index is the serialized root node tree; dataset bytes live
// in the data section at the offsets the index records. This is a
// deliberately simple encoding of the group/dataset model described in
// spec.md §4.1 — real HDF5 framing is out of scope, only its semantics.
var magic = [4]byte{'H', 'M', 'E', 'S'}

func encodeContainer(root *node, data []byte) ([]byte, error) {
	idx, err := json.Marshal(root)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(magic[:])
	if err := binary.Write(&buf, binary.BigEndian, uint64(len(idx))); err != nil {
		return nil, err
	}
	buf.Write(idx)
	buf.Write(data)
	return buf.Bytes(), nil
}

func decodeContainer(r io.ReaderAt) (*node, []byte, error) {
	header := make([]byte, 4+8)
	n, err := r.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	if n < len(header) {
		// Freshly created-but-empty file.
		return newGroupNode(), nil, nil
	}
	if !bytes.Equal(header[:4], magic[:]) {
		return nil, nil, herrors.Wrapf(herrors.ErrMisuse, "not a hermes archive file")
	}
	idxLen := binary.BigEndian.Uint64(header[4:12])
	idx := make([]byte, idxLen)
	if _, err := r.ReadAt(idx, 12); err != nil && err != io.EOF {
		return nil, nil, err
	}
	var root node
	if err := json.Unmarshal(idx, &root); err != nil {
		return nil, nil, herrors.Wrap(err, "unmarshal archive index")
	}
	if root.Children == nil {
		root.Children = make(map[string]*node)
	}
	dataOff := int64(12 + idxLen)
	sr := io.NewSectionReader(r, dataOff, 1<<40)
	data, err := io.ReadAll(sr)
	if err != nil {
		return nil, nil, err
	}
	return &root, data, nil
}
