// Package connectors provides store access for graph nodes. Backends are a
// closed set of kinds, each carrying its capability implementation and
// selected via a pure registry lookup; the executor never inspects types at
// runtime. All backend-specific failures are normalized to ConnectionError
// so retry logic upstream stays backend-independent.
package connectors

import (
	"context"
	"fmt"

	"github.com/vk/privgraph/internal/connectors/querycfg"
	"github.com/vk/privgraph/internal/graph"
	"github.com/vk/privgraph/internal/policy"
)

// Kind is one supported backend.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindMySQL    Kind = "mysql"
	KindSQLite   Kind = "sqlite"
	KindMongoDB  Kind = "mongodb"
)

// ParseKind validates a backend kind from configuration.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPostgres, KindMySQL, KindSQLite, KindMongoDB:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unsupported connection kind %q", s)
	}
}

// Config binds a connection key to a backend kind and its secrets.
type Config struct {
	Key     string
	Kind    Kind
	Secrets map[string]string
}

// Connector is the capability set every backend exposes. Each call owns its
// connection lifecycle for that call; no cross-call pooling is guaranteed.
type Connector interface {
	// TestConnection builds a client and verifies store liveness.
	TestConnection(ctx context.Context) error
	// Retrieve compiles and runs the node's read operation against the
	// accumulated upstream input. No constructible predicate yields zero
	// rows, not an error.
	Retrieve(ctx context.Context, node *graph.Node, p policy.Policy, input map[string][]any) ([]querycfg.Row, error)
	// Mask applies the policy's masking strategies to the given rows and
	// returns the number of records mutated.
	Mask(ctx context.Context, node *graph.Node, p policy.Policy, rows []querycfg.Row) (int, error)
	// Close releases any held resources.
	Close() error
}

// builders is the closed registry of backend constructors.
var builders = map[Kind]func(Config) (Connector, error){
	KindPostgres: newSQLConnector,
	KindMySQL:    newSQLConnector,
	KindSQLite:   newSQLConnector,
	KindMongoDB:  newMongoConnector,
}

// New validates the config's secrets against the backend's schema and builds
// the connector. Missing secrets are a configuration error, never a
// ConnectionError.
func New(cfg Config) (Connector, error) {
	if _, err := ParseKind(string(cfg.Kind)); err != nil {
		return nil, err
	}
	if err := ValidateSecrets(cfg); err != nil {
		return nil, err
	}
	return builders[cfg.Kind](cfg)
}
