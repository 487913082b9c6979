// Package graph merges per-dataset schema declarations into a single
// dependency graph of traversal nodes, one per collection, with resolved
// field-to-field edges and derived identity seed fields.
package graph

import "github.com/vk/privgraph/internal/fieldref"

// Field is one declared field on a collection.
type Field struct {
	Name string

	// DataCategories are the hierarchical category labels policies match on,
	// e.g. "user.provided.identifiable.contact.email".
	DataCategories []string

	// Identity names the identity attribute this field is seeded from
	// ("email", "phone_number", ...). Empty for non-identity fields.
	Identity string

	// PrimaryKey marks the field usable as the row selector for updates.
	PrimaryKey bool

	// References are the dependency declarations attached to this field.
	References []fieldref.Reference
}

// Collection is one declared queryable unit inside a dataset.
type Collection struct {
	Name   string
	Fields []Field
}

// Field returns the declared field with the given name, if any.
func (c Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Dataset is a named set of collections bound to one connection key.
type Dataset struct {
	Name          string
	ConnectionKey string
	Collections   []Collection
}
