package archive

import (
	"sort"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Group is a handle to a directory-like node within an open File.
type Group struct {
	file *File
	node *node
	path string
}

// Root returns the archive's root group.
func (f *File) Root() *Group {
	return &Group{file: f, node: f.root, path: ""}
}

// CreateGroup creates (and returns) the group at path, creating any
// missing intermediate groups, mirroring os.MkdirAll semantics.
func (f *File) CreateGroup(path string) (*Group, error) {
	parts, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.root
	for _, seg := range parts {
		child, ok := cur.Children[seg]
		if !ok {
			child = newGroupNode()
			cur.Children[seg] = child
		} else if child.Kind != KindGroup {
			return nil, herrors.Wrapf(herrors.ErrMisuse, "%s is a dataset, not a group", path)
		}
		cur = child
	}
	return &Group{file: f, node: cur, path: path}, nil
}

// OpenGroup resolves an existing group.
func (f *File) OpenGroup(path string) (*Group, error) {
	parts, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	cur := f.root
	for _, seg := range parts {
		child, ok := cur.Children[seg]
		if !ok {
			return nil, herrors.Wrapf(herrors.ErrResourceNotFound, "group %s not found", path)
		}
		cur = child
	}
	if cur.Kind != KindGroup {
		return nil, herrors.Wrapf(herrors.ErrMisuse, "%s is a dataset, not a group", path)
	}
	return &Group{file: f, node: cur, path: path}, nil
}

// Child describes one direct member of a group, for Children().
type Child struct {
	Name string
	Kind NodeKind
}

// Children iterates the direct members of g.
func (g *Group) Children() []Child {
	g.file.mu.RLock()
	defer g.file.mu.RUnlock()
	out := make([]Child, 0, len(g.node.Children))
	for name, n := range g.node.Children {
		out = append(out, Child{Name: name, Kind: n.Kind})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes the member at path (group or dataset), recursively for
// groups.
func (f *File) Delete(path string) error {
	parts, err := normalizePath(path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return herrors.Wrapf(herrors.ErrMisuse, "cannot delete archive root")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.root
	for _, seg := range parts[:len(parts)-1] {
		child, ok := cur.Children[seg]
		if !ok {
			return herrors.Wrapf(herrors.ErrResourceNotFound, "path %s not found", path)
		}
		cur = child
	}
	last := parts[len(parts)-1]
	if _, ok := cur.Children[last]; !ok {
		return herrors.Wrapf(herrors.ErrResourceNotFound, "path %s not found", path)
	}
	delete(cur.Children, last)
	return nil
}
