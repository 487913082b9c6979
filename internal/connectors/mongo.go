package connectors

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vk/privgraph/internal/connectors/querycfg"
	"github.com/vk/privgraph/internal/ctxlog"
	"github.com/vk/privgraph/internal/graph"
	"github.com/vk/privgraph/internal/policy"
)

// mongoConnector serves the document backend. Every call builds its own
// client and disconnects when done.
type mongoConnector struct {
	cfg Config
}

func newMongoConnector(cfg Config) (Connector, error) {
	return &mongoConnector{cfg: cfg}, nil
}

func (c *mongoConnector) connect(ctx context.Context) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(buildDSN(c.cfg)).
		SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &ConnectionError{Key: c.cfg.Key, Err: err}
	}
	return client, nil
}

func (c *mongoConnector) TestConnection(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(ctx) }()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return &ConnectionError{Key: c.cfg.Key, Err: err}
	}
	return nil
}

func (c *mongoConnector) Retrieve(ctx context.Context, node *graph.Node, p policy.Policy, input map[string][]any) ([]querycfg.Row, error) {
	logger := ctxlog.FromContext(ctx).With("node", node.Address.String())
	filter, projection, ok := querycfg.NewMongoConfig(node).GenerateQuery(input)
	if !ok {
		logger.Debug("no predicate constructible, node treated as empty")
		return nil, nil
	}

	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Disconnect(ctx) }()

	coll := client.Database(node.Address.Dataset).Collection(node.Address.Collection)
	cursor, err := coll.Find(ctx, filter, options.Find().SetProjection(projection))
	if err != nil {
		return nil, &ConnectionError{Key: c.cfg.Key, Err: err}
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, &ConnectionError{Key: c.cfg.Key, Err: err}
	}
	out := make([]querycfg.Row, len(docs))
	for i, doc := range docs {
		out[i] = flattenDocument(doc)
	}
	logger.Debug("retrieval finished", "rows", len(out))
	return out, nil
}

// flattenDocument converts one decoded document into a tagged-value row so it
// survives the cache codec and downstream compilers see plain Go values.
func flattenDocument(doc bson.M) querycfg.Row {
	row := make(querycfg.Row, len(doc))
	for k, v := range doc {
		row[k] = flattenValue(v)
	}
	return row
}

// flattenValue recursively replaces driver-owned BSON types: documents become
// string-keyed maps, arrays become slices, object ids their hex form, and
// timestamps time.Time values.
func flattenValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = flattenValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = flattenValue(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, elem := range val {
			out[elem.Key] = flattenValue(elem.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = flattenValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = flattenValue(item)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Binary:
		return val.Data
	case primitive.Null:
		return nil
	default:
		return v
	}
}

func (c *mongoConnector) Mask(ctx context.Context, node *graph.Node, p policy.Policy, rows []querycfg.Row) (int, error) {
	logger := ctxlog.FromContext(ctx).With("node", node.Address.String())
	compiler := querycfg.NewMongoConfig(node)

	client, err := c.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = client.Disconnect(ctx) }()

	coll := client.Database(node.Address.Dataset).Collection(node.Address.Collection)
	mutated := 0
	for _, row := range rows {
		filter, update, ok := compiler.GenerateUpdate(row, p)
		if !ok {
			continue
		}
		res, err := coll.UpdateOne(ctx, filter, update)
		if err != nil {
			return mutated, &ConnectionError{Key: c.cfg.Key, Err: err}
		}
		mutated += int(res.ModifiedCount)
	}
	logger.Debug("masking finished", "mutated", mutated)
	return mutated, nil
}

func (c *mongoConnector) Close() error { return nil }
