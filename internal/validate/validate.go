// Package validate builds the gatekeeper rules described in spec.md 4.8 on
// top of store.Validator/store.Installer, the same way internal/schema
// implements store's Backend contract: this package depends on store, never
// the reverse.
package validate

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/schema"
	"github.com/tg1482/kaybee/internal/store"
)

// Rule is one gatekeeper check, evaluated against the hypothetical
// post-mutation state of a GraphView. A Rule returns one or more violation
// messages for each node it rejects, or none if it passes.
type Rule interface {
	Check(v *store.GraphView) []string
}

// Validator aggregates every installed Rule into a single store.Validator,
// running each in turn and collecting every violation rather than stopping
// at the first (spec.md 7, "collect all violations").
type Validator struct {
	rules []Rule
}

// New builds a Validator over rules, in the order given.
func New(rules ...Rule) *Validator {
	return &Validator{rules: rules}
}

// Check implements store.Validator.
func (v *Validator) Check(view *store.GraphView) []string {
	var violations []string
	for _, r := range v.rules {
		violations = append(violations, r.Check(view)...)
	}
	return violations
}

// Install implements store.Installer: any rule that is itself an Installer
// (only freeze_schema, currently) runs its install-time migration.
func (v *Validator) Install(tx *gorm.DB, backend schema.Backend) error {
	for _, r := range v.rules {
		if inst, ok := r.(interface {
			Install(tx *gorm.DB, backend schema.Backend) error
		}); ok {
			if err := inst.Install(tx, backend); err != nil {
				return err
			}
		}
	}
	return nil
}

func violation(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
