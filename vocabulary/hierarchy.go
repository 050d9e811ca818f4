// Package vocabulary models the controlled vocabulary: a three-level tree of
// category, subcategory, and term nodes that every annotation is normalized
// against. A Hierarchy is built once at startup and is read-only afterward,
// so it is safe for unsynchronized concurrent reads.
package vocabulary

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/c360studio/semtag/annotation"
)

// Level is the depth of a node within the hierarchy.
type Level int

const (
	LevelCategory Level = iota + 1
	LevelSubcategory
	LevelTerm
)

// Node is one entry of the raw hierarchy document. Ids are unique across the
// whole tree; labels are not, so lookup is always by id.
type Node struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Children []*Node `json:"children,omitempty"`
}

// Path is the resolved (category, subcategory, term) triple for a node.
// Levels below the node's own are empty: a category id resolves to
// (label, "", ""), a subcategory id to (category, label, "").
type Path struct {
	Category    string
	Subcategory string
	Term        string
}

// Entry pairs a drivable node's id with its label. Label-driven backends use
// entries to build their private label→id side index.
type Entry struct {
	ID    string
	Label string
}

// Hierarchy is the immutable vocabulary tree plus its lookup indexes.
type Hierarchy struct {
	roots    []*Node
	byID     map[string]Path
	drivable []Entry
	labels   []string
}

// Load reads and builds a hierarchy from a JSON document on disk.
func Load(path string) (*Hierarchy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, annotation.NewLoadError(path, err)
	}
	h, err := Parse(data)
	if err != nil {
		return nil, annotation.NewLoadError(path, err)
	}
	return h, nil
}

// Parse builds a hierarchy from a JSON document: an array of category nodes,
// each with id, label and optional children, three levels deep.
func Parse(data []byte) (*Hierarchy, error) {
	var roots []*Node
	if err := json.Unmarshal(data, &roots); err != nil {
		return nil, fmt.Errorf("decode hierarchy document: %w", err)
	}
	return Build(roots)
}

// Build validates the raw tree and derives the lookup indexes. It fails if
// any node lacks an id or label, if an id appears twice anywhere in the tree,
// or if the tree is deeper than three levels.
func Build(roots []*Node) (*Hierarchy, error) {
	h := &Hierarchy{
		roots: roots,
		byID:  make(map[string]Path),
	}

	seenLabels := make(map[string]struct{})
	addDrivable := func(node *Node) {
		h.drivable = append(h.drivable, Entry{ID: node.ID, Label: node.Label})
		if _, dup := seenLabels[node.Label]; dup {
			return
		}
		seenLabels[node.Label] = struct{}{}
		h.labels = append(h.labels, node.Label)
	}

	for _, category := range roots {
		if err := h.index(category, Path{Category: category.Label}, LevelCategory); err != nil {
			return nil, err
		}
		if len(category.Children) == 0 {
			addDrivable(category)
			continue
		}
		for _, sub := range category.Children {
			path := Path{Category: category.Label, Subcategory: sub.Label}
			if err := h.index(sub, path, LevelSubcategory); err != nil {
				return nil, err
			}
			addDrivable(sub)
			for _, term := range sub.Children {
				path := Path{Category: category.Label, Subcategory: sub.Label, Term: term.Label}
				if err := h.index(term, path, LevelTerm); err != nil {
					return nil, err
				}
				if len(term.Children) > 0 {
					return nil, fmt.Errorf("node %q: children below term level", term.ID)
				}
			}
		}
	}
	return h, nil
}

func (h *Hierarchy) index(node *Node, path Path, level Level) error {
	if node == nil {
		return fmt.Errorf("nil node at level %d", level)
	}
	if node.ID == "" {
		return fmt.Errorf("node %q: missing id", node.Label)
	}
	if node.Label == "" {
		return fmt.Errorf("node %q: missing label", node.ID)
	}
	if _, dup := h.byID[node.ID]; dup {
		return fmt.Errorf("duplicate node id %q", node.ID)
	}
	h.byID[node.ID] = path
	return nil
}

// Lookup resolves a vocabulary id to its (category, subcategory, term) path.
// Unknown ids resolve to the zero Path; Lookup never fails.
func (h *Hierarchy) Lookup(id string) Path {
	return h.byID[id]
}

// LabelIndex returns the distinct drivable labels — childless categories and
// all subcategories — in first-seen document order. Later duplicates of a
// label are dropped. The returned slice is a copy.
func (h *Hierarchy) LabelIndex() []string {
	out := make([]string, len(h.labels))
	copy(out, h.labels)
	return out
}

// Drivable returns every drivable node as an (id, label) entry in document
// order, including entries whose label duplicates an earlier one.
func (h *Hierarchy) Drivable() []Entry {
	out := make([]Entry, len(h.drivable))
	copy(out, h.drivable)
	return out
}

// Size returns the total number of indexed nodes.
func (h *Hierarchy) Size() int {
	return len(h.byID)
}
