package validate

import (
	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/schema"
	"github.com/tg1482/kaybee/internal/store"
)

// FreezeSchema enforces that every node of Type carries metadata fields that
// are a subset of Fields, and, on install, narrows the schema registry to
// exactly that field set (spec.md 4.8).
type FreezeSchema struct {
	Type   string
	Fields []string
}

// Install implements store.Installer: set_fields drops any column/row
// outside Fields immediately, before the rule ever runs as a Check.
func (f FreezeSchema) Install(tx *gorm.DB, backend schema.Backend) error {
	return backend.SetFields(tx, f.Type, f.Fields)
}

// Check implements Rule.
func (f FreezeSchema) Check(v *store.GraphView) []string {
	allowed := make(map[string]bool, len(f.Fields))
	for _, field := range f.Fields {
		allowed[field] = true
	}

	names, err := v.NamesOfType(f.Type)
	if err != nil {
		return []string{violation("freeze_schema(%s): %v", f.Type, err)}
	}

	var out []string
	for _, name := range names {
		meta, err := v.Metadata(name)
		if err != nil {
			out = append(out, violation("freeze_schema(%s): %s: %v", f.Type, name, err))
			continue
		}
		for key := range meta {
			if !allowed[key] {
				out = append(out, violation("freeze_schema(%s): %s carries field %q outside the frozen set", f.Type, name, key))
			}
		}
	}
	return out
}

// RequiresField enforces that every node of Type has Field present and
// non-empty (spec.md 4.8).
type RequiresField struct {
	Type  string
	Field string
}

// Check implements Rule.
func (r RequiresField) Check(v *store.GraphView) []string {
	names, err := v.NamesOfType(r.Type)
	if err != nil {
		return []string{violation("requires_field(%s,%s): %v", r.Type, r.Field, err)}
	}

	var out []string
	for _, name := range names {
		meta, err := v.Metadata(name)
		if err != nil {
			out = append(out, violation("requires_field(%s,%s): %s: %v", r.Type, r.Field, name, err))
			continue
		}
		val, ok := meta[r.Field]
		if !ok || val.String() == "" {
			out = append(out, violation("requires_field(%s,%s): %s is missing %q", r.Type, r.Field, name, r.Field))
		}
	}
	return out
}

// RequiresTag enforces that every node of Type carries Tag in its "tags"
// field (spec.md 4.8).
type RequiresTag struct {
	Type string
	Tag  string
}

// Check implements Rule.
func (r RequiresTag) Check(v *store.GraphView) []string {
	names, err := v.NamesOfType(r.Type)
	if err != nil {
		return []string{violation("requires_tag(%s,%s): %v", r.Type, r.Tag, err)}
	}

	var out []string
	for _, name := range names {
		meta, err := v.Metadata(name)
		if err != nil {
			out = append(out, violation("requires_tag(%s,%s): %s: %v", r.Type, r.Tag, name, err))
			continue
		}
		tags, ok := meta["tags"]
		found := false
		if ok {
			for _, t := range tags.Items() {
				if t == r.Tag {
					found = true
					break
				}
			}
		}
		if !found {
			out = append(out, violation("requires_tag(%s,%s): %s is missing tag %q", r.Type, r.Tag, name, r.Tag))
		}
	}
	return out
}

// RequiresLink enforces that every node of Type has at least one outgoing
// resolved edge to a node of TargetType. Per spec.md 9's resolved Open
// Question, an unresolved token never counts toward satisfying this rule —
// GraphView.Wikilinks already drops unresolved edges, so this rule only
// ever sees resolved targets.
type RequiresLink struct {
	Type       string
	TargetType string
}

// Check implements Rule.
func (r RequiresLink) Check(v *store.GraphView) []string {
	names, err := v.NamesOfType(r.Type)
	if err != nil {
		return []string{violation("requires_link(%s,%s): %v", r.Type, r.TargetType, err)}
	}

	var out []string
	for _, name := range names {
		targets, err := v.Wikilinks(name)
		if err != nil {
			out = append(out, violation("requires_link(%s,%s): %s: %v", r.Type, r.TargetType, name, err))
			continue
		}
		found := false
		for _, t := range targets {
			if nodeIsType(v, t, r.TargetType) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, violation("requires_link(%s,%s): %s has no resolved link to a %s node", r.Type, r.TargetType, name, r.TargetType))
		}
	}
	return out
}

func nodeIsType(v *store.GraphView, name, typ string) bool {
	names, err := v.NamesOfType(typ)
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// NoOrphans enforces that every node has in-degree + out-degree >= 1
// (spec.md 4.8).
type NoOrphans struct{}

// Check implements Rule.
func (NoOrphans) Check(v *store.GraphView) []string {
	nodes, err := v.AllNodes()
	if err != nil {
		return []string{violation("no_orphans: %v", err)}
	}

	var out []string
	for _, n := range nodes {
		in, outDeg, err := v.Degree(n.Name)
		if err != nil {
			out = append(out, violation("no_orphans: %s: %v", n.Name, err))
			continue
		}
		if in+outDeg == 0 {
			out = append(out, violation("no_orphans: %s has no incoming or outgoing links", n.Name))
		}
	}
	return out
}

// Predicate is a user-supplied check over a single node, returning a
// violation message, or "" if the node passes.
type Predicate func(v *store.GraphView, name string) string

// Custom runs Predicate against every node of Type (spec.md 4.8,
// "custom(type, name, predicate)").
type Custom struct {
	Type      string
	Name      string
	Predicate Predicate
}

// Check implements Rule.
func (c Custom) Check(v *store.GraphView) []string {
	names, err := v.NamesOfType(c.Type)
	if err != nil {
		return []string{violation("custom(%s): %v", c.Name, err)}
	}

	var out []string
	for _, name := range names {
		if msg := c.Predicate(v, name); msg != "" {
			out = append(out, violation("custom(%s): %s: %s", c.Name, name, msg))
		}
	}
	return out
}
