package fieldref

import (
	"fmt"
	"strings"
)

// CollectionAddress uniquely identifies one queryable collection within one
// dataset. Two addresses are equal iff both components are equal, which makes
// the type usable as a map key.
type CollectionAddress struct {
	Dataset    string
	Collection string
}

// NewCollectionAddress builds an address from its two components.
func NewCollectionAddress(dataset, collection string) CollectionAddress {
	return CollectionAddress{Dataset: dataset, Collection: collection}
}

// String serializes the address into its canonical "dataset:collection" form.
func (a CollectionAddress) String() string {
	return a.Dataset + ":" + a.Collection
}

// IsZero reports whether the address has no components set.
func (a CollectionAddress) IsZero() bool {
	return a.Dataset == "" && a.Collection == ""
}

// FieldAddress uniquely identifies a field within a collection.
type FieldAddress struct {
	CollectionAddress
	Field string
}

// NewFieldAddress builds a field address from its three components.
func NewFieldAddress(dataset, collection, field string) FieldAddress {
	return FieldAddress{
		CollectionAddress: CollectionAddress{Dataset: dataset, Collection: collection},
		Field:             field,
	}
}

// String serializes the field address into "dataset:collection:field" form.
func (f FieldAddress) String() string {
	return f.Dataset + ":" + f.Collection + ":" + f.Field
}

// ParseFieldAddress parses a declared reference target. Two forms are accepted:
//
//	"collection.field"          resolved against defaultDataset
//	"dataset:collection:field"  fully qualified, may cross datasets
func ParseFieldAddress(s, defaultDataset string) (FieldAddress, error) {
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return FieldAddress{}, fmt.Errorf("malformed field address %q", s)
		}
		return NewFieldAddress(parts[0], parts[1], parts[2]), nil
	}
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return FieldAddress{}, fmt.Errorf("malformed field address %q", s)
	}
	if defaultDataset == "" {
		return FieldAddress{}, fmt.Errorf("field address %q needs a dataset qualifier", s)
	}
	return NewFieldAddress(defaultDataset, parts[0], parts[1]), nil
}
