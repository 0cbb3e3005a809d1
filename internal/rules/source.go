// Package rules provides the declarative rule store and the CEL-based
// condition evaluator.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/osprey/internal/domain"
)

// Source supplies the declarative rule document. Implementations must
// return domain.ErrConfiguration (wrapped) when the source is missing or
// malformed; a partial rule set is never acceptable.
type Source interface {
	Load() (*domain.RuleDocument, error)
}

// FileSource loads the rule document from a YAML or JSON file. YAML is a
// superset of JSON, so one parser covers both forms.
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed rule source.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads and parses the rule document.
func (s *FileSource) Load() (*domain.RuleDocument, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading rule source %s: %v", domain.ErrConfiguration, s.Path, err)
	}

	var doc domain.RuleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing rule source %s: %v", domain.ErrConfiguration, s.Path, err)
	}

	return &doc, nil
}

// StaticSource serves a fixed document. Used by tests and embedded setups.
type StaticSource struct {
	Document domain.RuleDocument
}

// Load returns a copy of the static document.
func (s *StaticSource) Load() (*domain.RuleDocument, error) {
	doc := s.Document
	return &doc, nil
}

// validateDocument checks document-level integrity. Individual condition
// expressions are NOT validated here: a rule whose condition fails to
// compile is kept (and never triggers) so one bad expression cannot take
// the whole set down.
func validateDocument(doc *domain.RuleDocument) error {
	if doc == nil || len(doc.Rules) == 0 {
		return fmt.Errorf("%w: rule document declares no rules", domain.ErrConfiguration)
	}

	seen := make(map[string]struct{}, len(doc.Rules))
	for i, r := range doc.Rules {
		if r.Label == "" {
			return fmt.Errorf("%w: rule %d has no label", domain.ErrConfiguration, i)
		}
		if _, dup := seen[r.Label]; dup {
			return fmt.Errorf("%w: duplicate rule label %q", domain.ErrConfiguration, r.Label)
		}
		seen[r.Label] = struct{}{}

		if r.Condition == "" {
			return fmt.Errorf("%w: rule %q has no condition", domain.ErrConfiguration, r.Label)
		}
		if r.Weight < 0 || r.Weight > 1 {
			return fmt.Errorf("%w: rule %q weight %v outside [0,1]", domain.ErrConfiguration, r.Label, r.Weight)
		}
	}
	return nil
}
