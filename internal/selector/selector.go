package selector

import (
	"fmt"
	"strings"
)

// PathNode is one element on the ancestor chain toward the document body,
// captured at record time. NthOfType is the 1-based position among same-tag
// siblings; SameTagSiblings counts them (including the element itself).
type PathNode struct {
	Tag             string `json:"tag"`
	ID              string `json:"id"`
	NthOfType       int    `json:"nth_of_type"`
	SameTagSiblings int    `json:"same_tag_siblings"`
}

// ElementInfo is the snapshot of a DOM element sent by the injected capture
// script. Path holds the element itself first, then ancestors toward body.
type ElementInfo struct {
	Tag         string     `json:"tag"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Placeholder string     `json:"placeholder"`
	AriaLabel   string     `json:"aria_label"`
	DataTestID  string     `json:"data_testid"`
	Classes     []string   `json:"classes"`
	Path        []PathNode `json:"path"`
}

// maxPathDepth bounds the structural fallback selector: the element plus up
// to 4 ancestors toward body.
const maxPathDepth = 5

// Synthesize produces an ordered list of candidate selector strings for an
// element, most specific first. It never returns an empty list: the worst
// case is a structural path selector, and a bare tag name below that.
//
// Redundant, layered candidates tolerate partial page changes between the
// recording and a later page load; if the id is gone but the name attribute
// survived, resolution still succeeds.
func Synthesize(el ElementInfo) []string {
	tag := strings.ToLower(strings.TrimSpace(el.Tag))
	candidates := make([]string, 0, 8)

	if el.ID != "" {
		candidates = append(candidates, "#"+escapeIdent(el.ID))
	}

	if el.Name != "" {
		candidates = append(candidates, attrSelector("", "name", el.Name))
		if tag != "" {
			candidates = append(candidates, attrSelector(tag, "name", el.Name))
		}
	}

	if tag == "input" && el.Type != "" {
		candidates = append(candidates, attrSelector("input", "type", el.Type))
	}

	if el.Placeholder != "" {
		candidates = append(candidates, attrSelector("", "placeholder", el.Placeholder))
	}

	if el.AriaLabel != "" {
		candidates = append(candidates, attrSelector("", "aria-label", el.AriaLabel))
	}

	if el.DataTestID != "" {
		candidates = append(candidates, attrSelector("", "data-testid", el.DataTestID))
	}

	if tag != "" && len(el.Classes) > 0 {
		classes := el.Classes
		if len(classes) > 2 {
			classes = classes[:2]
		}
		sel := tag
		for _, c := range classes {
			if c == "" {
				continue
			}
			sel += "." + escapeIdent(c)
		}
		if sel != tag {
			candidates = append(candidates, sel)
		}
	}

	if path := structuralPath(el); path != "" {
		candidates = append(candidates, path)
	}

	if len(candidates) == 0 && tag != "" {
		candidates = append(candidates, tag)
	}
	if len(candidates) == 0 {
		candidates = append(candidates, "*")
	}

	return candidates
}

// structuralPath builds the fallback-of-last-resort selector: a child
// combinator chain of up to 4 ancestors, anchored early at the nearest
// ancestor with an id, with tag:nth-of-type(n) wherever same-tag siblings
// exist at a level. It is the most fragile candidate since any sibling
// reorder breaks it, which is why it sorts last.
func structuralPath(el ElementInfo) string {
	nodes := el.Path
	if len(nodes) == 0 {
		if el.Tag == "" {
			return ""
		}
		nodes = []PathNode{{Tag: strings.ToLower(el.Tag), ID: el.ID, NthOfType: 1, SameTagSiblings: 1}}
	}
	if len(nodes) > maxPathDepth {
		nodes = nodes[:maxPathDepth]
	}

	// Built leaf-first, then reversed into document order.
	parts := make([]string, 0, len(nodes))
	for i, node := range nodes {
		tag := strings.ToLower(strings.TrimSpace(node.Tag))
		if tag == "" {
			break
		}
		// An id on the way up is a stable anchor; stop climbing there.
		if node.ID != "" && i > 0 {
			parts = append(parts, "#"+escapeIdent(node.ID))
			break
		}
		part := tag
		if node.SameTagSiblings > 1 && node.NthOfType > 0 {
			part = fmt.Sprintf("%s:nth-of-type(%d)", tag, node.NthOfType)
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return ""
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// escapeIdent escapes a string for use as a CSS identifier (after # or .).
// A digit cannot open an identifier, so a leading digit (or one right after a
// leading hyphen) is written as a code point escape, the way CSS.escape does:
// "123" becomes `\31 23`.
func escapeIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			if i == 0 || (i == 1 && s[0] == '-') {
				fmt.Fprintf(&b, "\\%x ", r)
			} else {
				b.WriteRune(r)
			}
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r == '-', r == '_', r > 0x7f:
			b.WriteRune(r)
		default:
			b.WriteRune('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// attrSelector builds tag[attr="value"] with the value escaped for a
// double-quoted CSS attribute string.
func attrSelector(tag, attr, value string) string {
	return fmt.Sprintf(`%s[%s="%s"]`, tag, attr, escapeAttr(value))
}

// escapeAttr escapes a string for use inside a double-quoted attribute value.
func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
