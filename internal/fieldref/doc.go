// Package fieldref defines the addressing scheme for queryable collections
// and their fields, and the declared field-to-field references that form the
// edges of a dataset graph.
package fieldref
