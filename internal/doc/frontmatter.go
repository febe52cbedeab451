// Package doc parses the node document grammar: an optional YAML-subset
// frontmatter header delimited by "---" lines, followed by a body, and
// extracts [[wikilink]] tokens from that body.
//
// Parsing never fails. A malformed or absent header simply yields empty
// metadata and the full input string as body — the write path never rejects
// a document over header syntax (spec.md 4.1).
package doc

import "strings"

// FieldSeparator joins list-valued metadata fields when persisted as text,
// per spec.md 9 ("Runtime-typed metadata"). U+001F (unit separator) cannot
// occur in ordinary note content, so a round-trip split is unambiguous.
const FieldSeparator = "\x1f"

// Value is one metadata field's value, preserving the author's original
// text form. Lists are the block/inline-list YAML forms; scalars are kept
// verbatim (the spec rejects bool/int coercion in favor of preserving text).
type Value struct {
	Scalar string
	List   []string
	IsList bool
}

// String returns the value's text form suitable for display: the scalar, or
// the list items joined with ", ".
func (v Value) String() string {
	if v.IsList {
		return strings.Join(v.List, ", ")
	}
	return v.Scalar
}

// Items returns the value as a slice, treating a bare scalar as a
// single-element list. Used for fields like "tags" that are read as sets
// whether or not the author wrote them as a list.
func (v Value) Items() []string {
	if v.IsList {
		return v.List
	}
	if v.Scalar == "" {
		return nil
	}
	return []string{v.Scalar}
}

// Encode serializes a Value into the text form stored in a single SQL text
// column: a scalar as-is, a list joined with FieldSeparator.
func Encode(v Value) string {
	if v.IsList {
		return strings.Join(v.List, FieldSeparator)
	}
	return v.Scalar
}

// Decode is Encode's inverse: a stored column value splits back into a list
// if it contains FieldSeparator, otherwise it's a scalar.
func Decode(raw string) Value {
	if strings.Contains(raw, FieldSeparator) {
		return Value{IsList: true, List: strings.Split(raw, FieldSeparator)}
	}
	return Value{Scalar: raw}
}

// Meta is an ordered key -> Value mapping decoded from a frontmatter header.
// Order of Keys() matches the order fields were first declared in the
// header, so schema widening observes a stable field order.
type Meta struct {
	keys []string
	vals map[string]Value
}

// NewMeta returns an empty ordered metadata map.
func NewMeta() *Meta {
	return &Meta{vals: make(map[string]Value)}
}

// Set assigns a field, appending it to Keys() the first time it's seen.
func (m *Meta) Set(key string, v Value) {
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Get looks up a field by name.
func (m *Meta) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns field names in first-declared order.
func (m *Meta) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len reports the number of declared fields.
func (m *Meta) Len() int { return len(m.keys) }

// ReservedType is the frontmatter key that selects a node's type.
const ReservedType = "type"

// UntypedSentinel is the type assigned to a node with no "type" field.
const UntypedSentinel = "untyped"

// Type returns the node's declared type, or UntypedSentinel if absent.
func (m *Meta) Type() string {
	v, ok := m.Get(ReservedType)
	if !ok {
		return UntypedSentinel
	}
	t := v.Scalar
	if v.IsList && len(v.List) > 0 {
		t = v.List[0]
	}
	if t == "" {
		return UntypedSentinel
	}
	return t
}

// Tags returns the "tags" field's items, or nil if absent.
func (m *Meta) Tags() []string {
	v, ok := m.Get("tags")
	if !ok {
		return nil
	}
	return v.Items()
}

// Parse splits raw into (metadata, body) per the document grammar. The
// header is decoded with a minimal YAML subset; any parse trouble degrades
// to empty metadata with the whole input treated as body, never an error.
func Parse(raw string) (*Meta, string) {
	lines := strings.Split(raw, "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) || strings.TrimSpace(lines[i]) != "---" {
		return NewMeta(), raw
	}

	headerStart := i + 1
	j := headerStart
	for j < len(lines) && strings.TrimSpace(lines[j]) != "---" {
		j++
	}
	if j >= len(lines) {
		// No closing delimiter: malformed, the whole document is body.
		return NewMeta(), raw
	}

	header := lines[headerStart:j]
	body := strings.Join(lines[j+1:], "\n")
	return decodeHeader(header), body
}

// decodeHeader parses "key: value" lines, inline "[a, b]" lists, and
// block "- item" lists, skipping any line it can't make sense of.
func decodeHeader(lines []string) *Meta {
	m := NewMeta()

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "-") {
			// An orphan list item with no preceding key; nothing to attach
			// it to at the top level, so it's dropped.
			continue
		}

		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		if key == "" {
			continue
		}
		rest := strings.TrimSpace(line[colon+1:])

		if rest == "" {
			// Possibly a block list on following indented "- item" lines.
			items, consumed := collectBlockList(lines, i+1)
			if consumed > 0 {
				m.Set(key, Value{IsList: true, List: items})
				i += consumed
				continue
			}
			m.Set(key, Value{Scalar: ""})
			continue
		}

		if strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]") {
			m.Set(key, Value{IsList: true, List: parseInlineList(rest)})
			continue
		}

		m.Set(key, Value{Scalar: unquote(rest)})
	}

	return m
}

func collectBlockList(lines []string, from int) ([]string, int) {
	var items []string
	n := 0
	for idx := from; idx < len(lines); idx++ {
		trimmed := strings.TrimSpace(lines[idx])
		if trimmed == "" {
			break
		}
		if !strings.HasPrefix(trimmed, "-") {
			break
		}
		item := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
		items = append(items, unquote(item))
		n++
	}
	return items, n
}

func parseInlineList(bracketed string) []string {
	inner := strings.TrimSuffix(strings.TrimPrefix(bracketed, "["), "]")
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	parts := strings.Split(inner, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		items = append(items, unquote(strings.TrimSpace(p)))
	}
	return items
}

// unquote strips one layer of matching quotes, if present. Booleans and
// integers are intentionally left as their original text.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
