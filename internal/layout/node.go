// Package layout provides a scrollable document of rectangular nodes loaded
// from TOML. A Document is both the element source and the geometry provider
// for an inview.Controller.
package layout

import (
	"slices"
	"strings"
	"sync"

	"github.com/dshills/inview/internal/inview"
)

// Node is a rectangular element of a Document. Node pointers are stable
// across Reload for nodes with an explicit id.
type Node struct {
	mu      sync.RWMutex
	id      string
	kind    string
	classes []string
	label   string
	rect    inview.Rect // document coordinates
}

// ElementID implements inview.Element.
func (n *Node) ElementID() string {
	return n.id
}

// Kind returns the node kind ("box" when unspecified).
func (n *Node) Kind() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kind
}

// Classes returns a copy of the node's classes.
func (n *Node) Classes() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.classes)
}

// HasClass reports whether the node carries class c.
func (n *Node) HasClass(c string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Contains(n.classes, c)
}

// Label returns the display label, falling back to the id.
func (n *Node) Label() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.label != "" {
		return n.label
	}
	return n.id
}

// Rect returns the node's box in document coordinates.
func (n *Node) Rect() inview.Rect {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rect
}

// SetRect moves or resizes the node.
func (n *Node) SetRect(r inview.Rect) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rect = r
}

// update copies the mutable attributes of src.
func (n *Node) update(src *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kind = src.kind
	n.classes = src.classes
	n.label = src.label
	n.rect = src.rect
}

func splitClasses(s string) []string {
	return strings.Fields(s)
}
