package querycfg

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vk/privgraph/internal/graph"
	"github.com/vk/privgraph/internal/policy"
)

// MongoConfig compiles filter/projection and update documents for a
// document-store node.
type MongoConfig struct {
	node *graph.Node
}

// NewMongoConfig builds a compiler for one node.
func NewMongoConfig(node *graph.Node) *MongoConfig {
	return &MongoConfig{node: node}
}

// GenerateQuery compiles the read operation: a filter document over the
// usable predicate fields (OR-joined, $in for multiple values) plus a
// projection restricted to the declared fields. ok=false when no predicate
// can be constructed.
func (c *MongoConfig) GenerateQuery(input map[string][]any) (filter, projection bson.M, ok bool) {
	filtered := FilterValues(c.node, input)
	if len(filtered) == 0 {
		return nil, nil, false
	}

	clauses := make([]bson.M, 0, len(filtered))
	for _, key := range sortedKeys(filtered) {
		values := filtered[key]
		if len(values) == 1 {
			clauses = append(clauses, bson.M{key: values[0]})
		} else {
			clauses = append(clauses, bson.M{key: bson.M{"$in": values}})
		}
	}
	if len(clauses) == 1 {
		filter = clauses[0]
	} else {
		filter = bson.M{"$or": clauses}
	}

	projection = bson.M{}
	for _, name := range c.node.FieldNames() {
		projection[name] = 1
	}
	return filter, projection, true
}

// GenerateUpdate compiles one $set document for one retrieved row, addressed
// by _id when present, else by declared primary key fields. Rows with no
// policy-matched field yield no update.
func (c *MongoConfig) GenerateUpdate(row Row, p policy.Policy) (filter, update bson.M, ok bool) {
	targets := p.ErasureTargets(c.node.Collection.Fields)
	set := bson.M{}
	for _, name := range c.node.FieldNames() {
		strategy, matched := targets[name]
		if !matched {
			continue
		}
		value, present := row[name]
		if !present {
			continue
		}
		set[name] = strategy.Mask(value)
	}
	if len(set) == 0 {
		return nil, nil, false
	}

	if id, present := row["_id"]; present {
		return bson.M{"_id": rehydrateID(id)}, bson.M{"$set": set}, true
	}
	filter = bson.M{}
	for _, f := range c.node.Collection.Fields {
		if !f.PrimaryKey {
			continue
		}
		if value, present := row[f.Name]; present {
			filter[f.Name] = value
		}
	}
	if len(filter) == 0 {
		return nil, nil, false
	}
	return filter, bson.M{"$set": set}, true
}

// rehydrateID restores a cached hex id to its ObjectID form so the update
// filter matches the stored document. Non-ObjectID ids pass through.
func rehydrateID(id any) any {
	s, isStr := id.(string)
	if !isStr {
		return id
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return id
	}
	return oid
}
