package store

import (
	"regexp"

	"github.com/tg1482/kaybee/internal/doc"
)

// Find lists node names matching nameRegex (empty matches everything),
// optionally restricted to typeFilter ("" means every type).
func (s *Store) Find(nameRegex, typeFilter string) ([]string, error) {
	names, err := s.Ls(typeFilter)
	if err != nil {
		return nil, err
	}
	if nameRegex == "" {
		return names, nil
	}
	re, err := regexp.Compile(nameRegex)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if re.MatchString(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Grep searches node content for pattern (a regular expression), returning
// matching node names. When fullContent is true the raw content (including
// the frontmatter header) is searched; otherwise only the body text after
// the header is searched.
func (s *Store) Grep(pattern string, fullContent bool) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rows, err := s.backend.AllContent(s.db)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, row := range rows {
		haystack := row.Content
		if !fullContent {
			_, haystack = doc.Parse(row.Content)
		}
		if re.MatchString(haystack) {
			out = append(out, row.Name)
		}
	}
	return out, nil
}

// Tags returns every tag observed across all nodes, mapped to the node
// names carrying it.
func (s *Store) Tags() (map[string][]string, error) {
	rows, err := s.backend.AllContent(s.db)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, row := range rows {
		meta, _ := doc.Parse(row.Content)
		for _, tag := range meta.Tags() {
			out[tag] = append(out[tag], row.Name)
		}
	}
	return out, nil
}

// TagsOf returns a single node's tags.
func (s *Store) TagsOf(name string) ([]string, error) {
	meta, err := s.Frontmatter(name)
	if err != nil {
		return nil, err
	}
	return meta.Tags(), nil
}

// Tree groups every node name by its type.
func (s *Store) Tree() (map[string][]string, error) {
	rows, err := s.backend.AllContent(s.db)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, row := range rows {
		out[row.Type] = append(out[row.Type], row.Name)
	}
	return out, nil
}

// Query is the raw SQL passthrough (spec.md 6): it runs sql against the
// primary database with params bound positionally and returns each row as a
// column-name-to-value map (a Go map, so column order is not kept). This
// escape hatch is read-only by convention, not by enforcement; callers are
// responsible for not routing writes around the changelog.
func (s *Store) Query(sql string, params ...any) ([]map[string]any, error) {
	rows, err := s.db.Raw(sql, params...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
