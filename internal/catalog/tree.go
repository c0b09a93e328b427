package catalog

import (
	"sort"

	"storefront/internal/model"
)

// CategoryCount is a category together with the number of products in it
// and in all of its descendants.
type CategoryCount struct {
	model.Category
	Count int64 `json:"count"`
}

// Tree is an in-memory view of the category hierarchy
type Tree struct {
	nodes    map[uint]model.Category
	children map[uint][]uint
	bySlug   map[string]uint
	roots    []uint
}

// NewTree indexes categories by id, slug and parent. Categories whose
// parent is missing are treated as roots.
func NewTree(categories []model.Category) *Tree {
	t := &Tree{
		nodes:    make(map[uint]model.Category, len(categories)),
		children: make(map[uint][]uint),
		bySlug:   make(map[string]uint, len(categories)),
	}
	for _, c := range categories {
		t.nodes[c.ID] = c
		t.bySlug[c.Slug] = c.ID
	}
	for _, c := range categories {
		if c.ParentID != nil {
			if _, ok := t.nodes[*c.ParentID]; ok && *c.ParentID != c.ID {
				t.children[*c.ParentID] = append(t.children[*c.ParentID], c.ID)
				continue
			}
		}
		t.roots = append(t.roots, c.ID)
	}

	sort.Slice(t.roots, func(i, j int) bool { return t.roots[i] < t.roots[j] })
	for id := range t.children {
		ids := t.children[id]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return t
}

// BySlug looks a category up by its slug
func (t *Tree) BySlug(slug string) (model.Category, bool) {
	id, ok := t.bySlug[slug]
	if !ok {
		return model.Category{}, false
	}
	return t.nodes[id], true
}

// Roots returns the top-level categories ordered by id
func (t *Tree) Roots() []model.Category {
	out := make([]model.Category, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.nodes[id])
	}
	return out
}

// Descendants returns the ids below id in breadth-first order, with id
// itself first when includeSelf is set. Unknown ids yield nothing.
func (t *Tree) Descendants(id uint, includeSelf bool) []uint {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}

	var out []uint
	if includeSelf {
		out = append(out, id)
	}
	seen := map[uint]bool{id: true}
	queue := append([]uint(nil), t.children[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, t.children[next]...)
	}
	return out
}

// Count sums direct product counts over id and its descendants
func (t *Tree) Count(id uint, direct map[uint]int64) int64 {
	var total int64
	for _, d := range t.Descendants(id, true) {
		total += direct[d]
	}
	return total
}

// Listing returns the categories shown beside a product list: the roots
// when slug is empty, otherwise every descendant of slug (not slug itself).
// The second result is false when slug is unknown.
func (t *Tree) Listing(slug string, direct map[uint]int64) ([]CategoryCount, bool) {
	var ids []uint
	if slug == "" {
		ids = t.roots
	} else {
		c, ok := t.BySlug(slug)
		if !ok {
			return nil, false
		}
		ids = t.Descendants(c.ID, false)
	}

	out := make([]CategoryCount, 0, len(ids))
	for _, id := range ids {
		out = append(out, CategoryCount{Category: t.nodes[id], Count: t.Count(id, direct)})
	}
	return out, true
}
