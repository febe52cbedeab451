package store

import (
	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/doc"
	"github.com/tg1482/kaybee/internal/resolve"
	"github.com/tg1482/kaybee/models"
)

// replaceEdges performs the full-replacement edge sync on write (spec.md
// 4.6): delete every edge with source = name, then insert the set newly
// extracted from body, in source order.
func replaceEdges(tx *gorm.DB, name, body string) error {
	if err := tx.Where("source = ?", name).Delete(&models.Edge{}).Error; err != nil {
		return err
	}
	targets := doc.ExtractWikilinks(body)
	if len(targets) == 0 {
		return nil
	}
	rows := make([]models.Edge, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, models.Edge{Source: name, Target: t})
	}
	return tx.Create(&rows).Error
}

// renameEdgeSources rewrites every edge's source column on mv (spec.md 4.6).
func renameEdgeSources(tx *gorm.DB, old, newName string) error {
	return tx.Model(&models.Edge{}).Where("source = ?", old).Update("source", newName).Error
}

// copyEdges duplicates src's outgoing edges onto dst, for cp.
func copyEdges(tx *gorm.DB, src, dst string) error {
	var targets []string
	if err := tx.Model(&models.Edge{}).Where("source = ?", src).Pluck("target", &targets).Error; err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}
	rows := make([]models.Edge, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, models.Edge{Source: dst, Target: t})
	}
	return tx.Create(&rows).Error
}

// rawTargets returns name's outgoing edge targets verbatim, in insertion
// order (edges.ID ascending), unresolved tokens included.
func rawTargets(tx *gorm.DB, name string) ([]string, error) {
	var targets []string
	err := tx.Model(&models.Edge{}).Where("source = ?", name).Order("id ASC").Pluck("target", &targets).Error
	return targets, err
}

// resolvedTargets resolves name's outgoing edges, dropping unresolved ones.
func (s *Store) resolvedTargets(tx *gorm.DB, name string) ([]string, error) {
	raw, err := rawTargets(tx, name)
	if err != nil {
		return nil, err
	}
	names, err := allNames(tx)
	if err != nil {
		return nil, err
	}
	idx := resolve.NewIndex()
	idx.Rebuild(names)

	var out []string
	for _, t := range raw {
		if n, ok := idx.Resolve(t, names); ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// Wikilinks returns name's resolved outgoing targets in source order.
func (s *Store) Wikilinks(name string) ([]string, error) {
	return s.resolvedTargets(s.db, name)
}

// RawWikilinks returns name's outgoing targets verbatim, including
// unresolved tokens.
func (s *Store) RawWikilinks(name string) ([]string, error) {
	return rawTargets(s.db, name)
}

// Backlinks returns every node whose resolved outgoing edges include name.
func (s *Store) Backlinks(name string) ([]string, error) {
	return backlinksOf(s.db, s, name)
}

func backlinksOf(tx *gorm.DB, s *Store, name string) ([]string, error) {
	names, err := allNames(tx)
	if err != nil {
		return nil, err
	}
	idx := resolve.NewIndex()
	idx.Rebuild(names)

	var edges []models.Edge
	if err := tx.Find(&edges).Error; err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]bool)
	for _, e := range edges {
		resolved, ok := idx.Resolve(e.Target, names)
		if !ok || resolved != name {
			continue
		}
		if !seen[e.Source] {
			seen[e.Source] = true
			out = append(out, e.Source)
		}
	}
	return out, nil
}

// Graph returns the full resolved adjacency: source name -> resolved
// targets, unresolved edges skipped.
func (s *Store) Graph() (map[string][]string, error) {
	names, err := allNames(s.db)
	if err != nil {
		return nil, err
	}
	idx := resolve.NewIndex()
	idx.Rebuild(names)

	var edges []models.Edge
	if err := s.db.Order("id ASC").Find(&edges).Error; err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, e := range edges {
		if resolved, ok := idx.Resolve(e.Target, names); ok {
			out[e.Source] = append(out[e.Source], resolved)
		}
	}
	return out, nil
}
