package layout

import (
	"fmt"
	"strings"
)

// selector is one compound simple selector: kind, #id and .class parts.
type selector struct {
	any     bool
	kind    string
	id      string
	classes []string
}

// SelectorError reports a malformed selector.
type SelectorError struct {
	Selector string
	Message  string
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q: %s", e.Selector, e.Message)
}

// parseSelectors parses a comma separated selector list such as
// "*", "#header", ".card", "box.card.wide" or ".a, #b".
func parseSelectors(query string) ([]selector, error) {
	var out []selector
	for _, part := range strings.Split(query, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &SelectorError{Selector: query, Message: "empty selector"}
		}
		sel, err := parseCompound(part)
		if err != nil {
			return nil, &SelectorError{Selector: query, Message: err.Error()}
		}
		out = append(out, sel)
	}
	return out, nil
}

func parseCompound(s string) (selector, error) {
	if s == "*" {
		return selector{any: true}, nil
	}
	if strings.ContainsAny(s, " \t>+~[]:") {
		return selector{}, fmt.Errorf("unsupported syntax in %q", s)
	}

	var sel selector
	i := 0
	// Leading kind name, up to the first '#' or '.'.
	for i < len(s) && s[i] != '#' && s[i] != '.' {
		i++
	}
	sel.kind = s[:i]

	for i < len(s) {
		marker := s[i]
		j := i + 1
		for j < len(s) && s[j] != '#' && s[j] != '.' {
			j++
		}
		name := s[i+1 : j]
		if name == "" {
			return selector{}, fmt.Errorf("missing name after %q", string(marker))
		}
		switch marker {
		case '#':
			if sel.id != "" {
				return selector{}, fmt.Errorf("more than one id in %q", s)
			}
			sel.id = name
		case '.':
			sel.classes = append(sel.classes, name)
		}
		i = j
	}
	return sel, nil
}

func (s selector) matches(n *Node) bool {
	if s.any {
		return true
	}
	if s.kind != "" && s.kind != n.Kind() {
		return false
	}
	if s.id != "" && s.id != n.ElementID() {
		return false
	}
	for _, c := range s.classes {
		if !n.HasClass(c) {
			return false
		}
	}
	return true
}
