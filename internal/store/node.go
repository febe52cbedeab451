package store

import (
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tg1482/kaybee/internal/doc"
	"github.com/tg1482/kaybee/models"
)

// Write parses content, determines its type, widens the schema, upserts the
// typed row, replaces outgoing edges, and appends a changelog entry
// (node.write, or node.type_change if the node existed under a different
// type) — spec.md 4.5.
func (s *Store) Write(name, content string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return s.runMutation(func(tx *gorm.DB) error {
		op, payload, err := s.writeRow(tx, name, content)
		if err != nil {
			return err
		}
		return s.append(tx, op, name, payload)
	})
}

// ApplyRemote performs the same write as Write but never appends a
// changelog entry, for internal/replicate's pull path (spec.md 4.9,
// "bypassing the changelog to prevent push-back loops"). It still runs
// inside the normal mutation transaction, so a gatekeeper validator still
// sees and can reject it.
func (s *Store) ApplyRemote(name, content string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return s.runMutation(func(tx *gorm.DB) error {
		_, _, err := s.writeRow(tx, name, content)
		return err
	})
}

// writeRow performs Write's core side effects against tx, returning the
// changelog op and payload a caller may choose to append.
func (s *Store) writeRow(tx *gorm.DB, name, content string) (string, WritePayload, error) {
	meta, body := doc.Parse(content)
	typ := meta.Type()

	existingType, existed, err := nodeType(tx, name)
	if err != nil {
		return "", WritePayload{}, err
	}

	op := OpNodeWrite
	if existed && existingType != typ {
		if err := s.backend.Delete(tx, existingType, name); err != nil {
			return "", WritePayload{}, err
		}
		op = OpNodeTypeChange
	}

	if err := s.backend.Upsert(tx, typ, name, content, fieldValues(meta)); err != nil {
		return "", WritePayload{}, err
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"type"}),
	}).Create(&models.NodeIndex{Name: name, Type: typ}).Error; err != nil {
		return "", WritePayload{}, err
	}

	if err := replaceEdges(tx, name, body); err != nil {
		return "", WritePayload{}, err
	}

	return op, WritePayload{Name: name, Type: typ, Content: content}, nil
}

// Touch writes content only if name is absent; otherwise a no-op.
func (s *Store) Touch(name, content string) error {
	if err := validateName(name); err != nil {
		return err
	}
	_, exists, err := nodeType(s.db, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.Write(name, content)
}

// Rm deletes name's typed row, node-index entry, and outgoing edges.
// Backlinks to name remain as unresolved edges (spec.md 4.5).
func (s *Store) Rm(name string) error {
	return s.runMutation(func(tx *gorm.DB) error {
		typ, err := s.rmRow(tx, name)
		if err != nil {
			return err
		}
		return s.append(tx, OpNodeRm, name, RmPayload{Name: name, Type: typ})
	})
}

// ApplyRemoteRm mirrors Rm without appending a changelog entry (spec.md
// 4.9). A name already absent locally is a no-op. replicate.Puller.Pull
// applies writes only and does not call it.
func (s *Store) ApplyRemoteRm(name string) error {
	return s.runMutation(func(tx *gorm.DB) error {
		_, ok, err := nodeType(tx, name)
		if err != nil || !ok {
			return err
		}
		_, err = s.rmRow(tx, name)
		return err
	})
}

// rmRow performs Rm's core side effects against tx, returning the node's
// last-known type.
func (s *Store) rmRow(tx *gorm.DB, name string) (string, error) {
	typ, ok, err := nodeType(tx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", notFound(name)
	}
	if err := s.backend.Delete(tx, typ, name); err != nil {
		return "", err
	}
	if err := tx.Where("name = ?", name).Delete(&models.NodeIndex{}).Error; err != nil {
		return "", err
	}
	if err := tx.Where("source = ?", name).Delete(&models.Edge{}).Error; err != nil {
		return "", err
	}
	return typ, nil
}

// Mv atomically renames a node: old must exist, new must be absent.
// Outgoing edges' source is rewritten; resolution of new is recomputed per
// query since targets are stored verbatim (spec.md 4.5, 4.6).
func (s *Store) Mv(old, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	return s.runMutation(func(tx *gorm.DB) error {
		typ, ok, err := nodeType(tx, old)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(old)
		}
		if _, exists, err := nodeType(tx, newName); err != nil {
			return err
		} else if exists {
			return alreadyExists(newName)
		}

		if err := s.backend.Rename(tx, typ, old, newName); err != nil {
			return err
		}
		if err := tx.Model(&models.NodeIndex{}).Where("name = ?", old).Update("name", newName).Error; err != nil {
			return err
		}
		if err := renameEdgeSources(tx, old, newName); err != nil {
			return err
		}
		return s.append(tx, OpNodeMv, newName, MvPayload{Old: old, New: newName})
	})
}

// Cp deep-copies src's typed row, metadata, body, and outgoing edges to dst.
// dst must be absent.
func (s *Store) Cp(src, dst string) error {
	if err := validateName(dst); err != nil {
		return err
	}
	return s.runMutation(func(tx *gorm.DB) error {
		typ, ok, err := nodeType(tx, src)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(src)
		}
		if _, exists, err := nodeType(tx, dst); err != nil {
			return err
		} else if exists {
			return alreadyExists(dst)
		}

		content, _, err := s.backend.Read(tx, typ, src)
		if err != nil {
			return err
		}
		meta, _ := doc.Parse(content)
		if err := s.backend.Upsert(tx, typ, dst, content, fieldValues(meta)); err != nil {
			return err
		}
		if err := tx.Create(&models.NodeIndex{Name: dst, Type: typ}).Error; err != nil {
			return err
		}
		if err := copyEdges(tx, src, dst); err != nil {
			return err
		}
		return s.append(tx, OpNodeCp, dst, CpPayload{Src: src, Dst: dst})
	})
}

// Cat returns name's full raw content.
func (s *Store) Cat(name string) (string, error) {
	typ, ok, err := nodeType(s.db, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", notFound(name)
	}
	content, _, err := s.backend.Read(s.db, typ, name)
	return content, err
}

// Body returns name's content after the frontmatter header.
func (s *Store) Body(name string) (string, error) {
	content, err := s.Cat(name)
	if err != nil {
		return "", err
	}
	_, body := doc.Parse(content)
	return body, nil
}

// Frontmatter returns name's parsed metadata.
func (s *Store) Frontmatter(name string) (*doc.Meta, error) {
	content, err := s.Cat(name)
	if err != nil {
		return nil, err
	}
	meta, _ := doc.Parse(content)
	return meta, nil
}

// Info is a node's full read view: identity, content, parsed metadata, and
// body, returned together for the query façade's `info` operation.
type Info struct {
	Name    string
	Type    string
	Content string
	Meta    *doc.Meta
	Body    string
}

// Info returns name's full read view.
func (s *Store) Info(name string) (*Info, error) {
	typ, ok, err := nodeType(s.db, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(name)
	}
	content, _, err := s.backend.Read(s.db, typ, name)
	if err != nil {
		return nil, err
	}
	meta, body := doc.Parse(content)
	return &Info{Name: name, Type: typ, Content: content, Meta: meta, Body: body}, nil
}

// Read performs a breadth-first expansion from name through resolved
// outgoing edges up to depth hops, returning an ordered mapping of node name
// to content. A visited set suppresses cycles and re-visits so diamond
// joins appear once (spec.md 4.5).
func (s *Store) Read(name string, depth int) ([]string, map[string]string, error) {
	if _, ok, err := nodeType(s.db, name); err != nil {
		return nil, nil, err
	} else if !ok {
		return nil, nil, notFound(name)
	}

	order := []string{name}
	visited := map[string]bool{name: true}
	content := make(map[string]string)

	frontier := []string{name}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, n := range frontier {
			targets, err := s.Wikilinks(n)
			if err != nil {
				return nil, nil, err
			}
			for _, t := range targets {
				if visited[t] {
					continue
				}
				visited[t] = true
				order = append(order, t)
				next = append(next, t)
			}
		}
		frontier = next
	}

	for _, n := range order {
		c, err := s.Cat(n)
		if err != nil {
			return nil, nil, err
		}
		content[n] = c
	}
	return order, content, nil
}

// AddType registers typ with an empty field set, lazily creating its
// storage if the backend requires it. If typ is already known its storage
// and fields are left as they are, but a type.add changelog entry is still
// appended.
func (s *Store) AddType(typ string) error {
	return s.runMutation(func(tx *gorm.DB) error {
		if err := s.backend.Widen(tx, typ, nil); err != nil {
			return err
		}
		return s.append(tx, OpTypeAdd, typ, TypePayload{Type: typ})
	})
}

// RemoveType drops typ's storage entirely, migrating every node currently
// of that type to doc.UntypedSentinel (spec.md 3, "Type").
func (s *Store) RemoveType(typ string) error {
	return s.runMutation(func(tx *gorm.DB) error {
		var names []string
		if err := tx.Model(&models.NodeIndex{}).Where("type = ?", typ).Pluck("name", &names).Error; err != nil {
			return err
		}
		sort.Strings(names)

		for _, name := range names {
			content, _, err := s.backend.Read(tx, typ, name)
			if err != nil {
				return err
			}
			if err := s.backend.Upsert(tx, doc.UntypedSentinel, name, content, map[string]doc.Value{}); err != nil {
				return err
			}
			if err := tx.Model(&models.NodeIndex{}).Where("name = ?", name).Update("type", doc.UntypedSentinel).Error; err != nil {
				return err
			}
		}

		if err := s.backend.DropType(tx, typ); err != nil {
			return err
		}
		return s.append(tx, OpTypeRm, typ, TypePayload{Type: typ})
	})
}

// SchemaMap returns the full type -> ordered field set mapping.
func (s *Store) SchemaMap() (map[string][]string, error) {
	return s.backend.SchemaMap(s.db)
}

// Ls lists node names, optionally filtered by type ("" lists all).
func (s *Store) Ls(typ string) ([]string, error) {
	var names []string
	q := s.db.Model(&models.NodeIndex{})
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	if err := q.Order("name ASC").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}
