package fieldref

import "fmt"

// Direction states which side of a declared reference feeds the other.
type Direction string

const (
	// DirectionFrom means the remote field feeds the declaring field.
	DirectionFrom Direction = "from"
	// DirectionTo means the declaring field feeds the remote field.
	DirectionTo Direction = "to"
)

// ParseDirection validates a direction string from configuration.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionFrom, DirectionTo:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("invalid reference direction %q (want %q or %q)", s, DirectionFrom, DirectionTo)
	}
}

// Reference is a declared dependency between the field it is attached to and
// a remote field, possibly in another dataset. Direction is always explicit;
// a reference whose remote collection equals the declaring collection is kept
// as a distinguished self edge, never merged away.
type Reference struct {
	Remote    FieldAddress
	Direction Direction
}

// Edge is a resolved, directed dependency between two concrete fields:
// values produced at From populate the predicate for To.
type Edge struct {
	From FieldAddress
	To   FieldAddress
}

// String renders the edge for error messages and logs.
func (e Edge) String() string {
	return e.From.String() + " -> " + e.To.String()
}

// SelfLoop reports whether both endpoints live in the same collection.
func (e Edge) SelfLoop() bool {
	return e.From.CollectionAddress == e.To.CollectionAddress
}
