package store

import (
	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/doc"
	"github.com/tg1482/kaybee/models"
)

// GraphView is the read-only surface a Validator rule evaluates against. It
// is bound to one in-flight transaction so a rule sees the hypothetical
// post-mutation state, not just what was committed before the write began.
type GraphView struct {
	tx    *gorm.DB
	store *Store
}

// NodeInfo is one node's identity as seen by a graph-wide scan.
type NodeInfo struct {
	Name string
	Type string
}

// AllNodes lists every node currently visible under the view's transaction.
func (v *GraphView) AllNodes() ([]NodeInfo, error) {
	var recs []models.NodeIndex
	if err := v.tx.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]NodeInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, NodeInfo{Name: r.Name, Type: r.Type})
	}
	return out, nil
}

// NamesOfType lists node names belonging to typ.
func (v *GraphView) NamesOfType(typ string) ([]string, error) {
	var names []string
	err := v.tx.Model(&models.NodeIndex{}).Where("type = ?", typ).Pluck("name", &names).Error
	return names, err
}

// Fields returns typ's current ordered field set.
func (v *GraphView) Fields(typ string) ([]string, error) {
	return v.store.backend.Fields(v.tx, typ)
}

// Metadata returns name's parsed metadata fields (not including raw
// content), or NotFound if name isn't a typed node.
func (v *GraphView) Metadata(name string) (map[string]doc.Value, error) {
	typ, ok, err := nodeType(v.tx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(name)
	}
	_, fields, err := v.store.backend.Read(v.tx, typ, name)
	return fields, err
}

// Wikilinks returns name's resolved outgoing targets under the view's
// in-flight state.
func (v *GraphView) Wikilinks(name string) ([]string, error) {
	return v.store.resolvedTargets(v.tx, name)
}

// Backlinks returns every node whose resolved outgoing edges include name,
// under the view's in-flight state.
func (v *GraphView) Backlinks(name string) ([]string, error) {
	return backlinksOf(v.tx, v.store, name)
}

// Degree returns name's in-degree and out-degree (resolved edges only),
// used by rules like no_orphans.
func (v *GraphView) Degree(name string) (inDegree, outDegree int, err error) {
	out, err := v.Wikilinks(name)
	if err != nil {
		return 0, 0, err
	}
	in, err := v.Backlinks(name)
	if err != nil {
		return 0, 0, err
	}
	return len(in), len(out), nil
}
