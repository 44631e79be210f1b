package zarr

import (
	"context"
	"errors"
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/metadata"
	"github.com/TuSKan/go-zarr/store"
)

// Group is a zarr.json-described group node: attributes and child listing
// only. User-facing group/tree traversal (walking a hierarchy, resolving
// paths through an in-process node registry) is explicitly out of scope
// (spec.md §1); Group exists so a group's own attributes can be read and
// written, and so its immediate children can be enumerated via the store,
// supplemented from the original Rust implementation's group_builder.rs
// (group metadata construction/validation, no traversal).
type Group struct {
	store    store.Store
	nodePath string
	meta     *metadata.GroupMetadata
}

// CreateGroup writes a group's zarr.json document to the store at nodePath.
func CreateGroup(ctx context.Context, s store.Store, nodePath string, attrs map[string]any) (*Group, error) {
	meta := &metadata.GroupMetadata{ZarrFormat: 3, NodeType: "group", Attributes: attrs}
	doc, err := meta.Marshal()
	if err != nil {
		return nil, fmt.Errorf("zarr: marshal group metadata for %q: %w", nodePath, err)
	}
	key := metadataKey(nodePath)
	if err := s.Set(ctx, key, doc); err != nil {
		return nil, codec.NewStorageError("set", key, err)
	}
	return &Group{store: s, nodePath: nodePath, meta: meta}, nil
}

// OpenGroup loads an existing group's zarr.json from the store.
func OpenGroup(ctx context.Context, s store.Store, nodePath string) (*Group, error) {
	key := metadataKey(nodePath)
	doc, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("zarr: no group at %q: %w", nodePath, err)
		}
		return nil, codec.NewStorageError("get", key, err)
	}
	meta, err := metadata.ParseGroup(doc)
	if err != nil {
		return nil, fmt.Errorf("zarr: %q: %w", nodePath, err)
	}
	return &Group{store: s, nodePath: nodePath, meta: meta}, nil
}

// Attributes returns the group's user attributes.
func (g *Group) Attributes() map[string]any { return g.meta.Attributes }

// SetAttributes replaces the group's user attributes and persists the
// updated zarr.json.
func (g *Group) SetAttributes(ctx context.Context, attrs map[string]any) error {
	g.meta.Attributes = attrs
	doc, err := g.meta.Marshal()
	if err != nil {
		return fmt.Errorf("zarr: marshal group metadata for %q: %w", g.nodePath, err)
	}
	key := metadataKey(g.nodePath)
	if err := g.store.Set(ctx, key, doc); err != nil {
		return codec.NewStorageError("set", key, err)
	}
	return nil
}

// Children lists the immediate child node names below this group, i.e. the
// names for which <nodePath>/<name>/zarr.json exists in the store, without
// distinguishing array children from group children or descending further
// (spec.md §1's Non-goal excludes recursive tree traversal, not this one
// level of enumeration).
func (g *Group) Children(ctx context.Context) ([]string, error) {
	lister, ok := g.store.(store.Lister)
	if !ok {
		return nil, fmt.Errorf("zarr: %q: %w", g.nodePath, store.ErrListUnsupported)
	}
	prefix := g.nodePath
	if prefix != "" {
		prefix += "/"
	}
	names, err := lister.ListDir(ctx, prefix)
	if err != nil {
		return nil, codec.NewStorageError("list", prefix, err)
	}
	var children []string
	for _, name := range names {
		key := metadataKey(prefix + name)
		if _, err := g.store.Size(ctx, key); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, codec.NewStorageError("size", key, err)
		}
		children = append(children, name)
	}
	return children, nil
}
