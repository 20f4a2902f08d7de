package odm

import (
	"sort"

	"github.com/goforj/odm/docstore"
)

// Schema lists the attribute names a kind accepts. It is immutable once
// registered.
type Schema struct {
	kind       string
	required   map[string]struct{}
	admissible map[string]struct{}
}

func newSchema(kind string, required, admissible []string) Schema {
	s := Schema{
		kind:       kind,
		required:   make(map[string]struct{}, len(required)),
		admissible: make(map[string]struct{}, len(admissible)),
	}
	for _, name := range required {
		s.required[name] = struct{}{}
	}
	for _, name := range admissible {
		s.admissible[name] = struct{}{}
	}
	return s
}

// Kind returns the kind name.
func (s Schema) Kind() string { return s.kind }

// Allows reports whether name may be assigned. Required names are always
// allowed; "_id" never is.
func (s Schema) Allows(name string) bool {
	if name == docstore.IDField {
		return false
	}
	if _, ok := s.required[name]; ok {
		return true
	}
	_, ok := s.admissible[name]
	return ok
}

// IsRequired reports whether name must be present at construction.
func (s Schema) IsRequired(name string) bool {
	_, ok := s.required[name]
	return ok
}

// Required returns the required names, sorted.
func (s Schema) Required() []string { return sortedKeys(s.required) }

// Admissible returns the optional names, sorted.
func (s Schema) Admissible() []string { return sortedKeys(s.admissible) }

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
