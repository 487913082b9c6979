package querycfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vk/privgraph/internal/policy"
)

func TestMongoGenerateQuery(t *testing.T) {
	orders := testNode(t, "orders")
	customers := testNode(t, "customers")

	t.Run("single value filter", func(t *testing.T) {
		cfg := NewMongoConfig(customers)
		filter, projection, ok := cfg.GenerateQuery(map[string][]any{"email": {"x@example.com"}})
		require.True(t, ok)
		assert.Equal(t, bson.M{"email": "x@example.com"}, filter)
		assert.Equal(t, bson.M{"id": 1, "email": 1, "name": 1}, projection)
	})

	t.Run("multiple values use set membership", func(t *testing.T) {
		cfg := NewMongoConfig(orders)
		filter, _, ok := cfg.GenerateQuery(map[string][]any{"customer_id": {1, 2}})
		require.True(t, ok)
		assert.Equal(t, bson.M{"customer_id": bson.M{"$in": []any{1, 2}}}, filter)
	})

	t.Run("multiple fields are disjoined", func(t *testing.T) {
		cfg := NewMongoConfig(orders)
		filter, _, ok := cfg.GenerateQuery(map[string][]any{
			"customer_id":    {1},
			"shipping_email": {"x@example.com"},
		})
		require.True(t, ok)
		assert.Equal(t, bson.M{"$or": []bson.M{
			{"customer_id": 1},
			{"shipping_email": "x@example.com"},
		}}, filter)
	})

	t.Run("no usable predicate yields no query", func(t *testing.T) {
		cfg := NewMongoConfig(orders)
		_, _, ok := cfg.GenerateQuery(map[string][]any{"customer_id": {nil}})
		assert.False(t, ok)
	})
}

func TestMongoGenerateUpdate(t *testing.T) {
	customers := testNode(t, "customers")
	nullPolicy := policy.Policy{
		Name: "erase",
		Rules: []policy.Rule{{
			Name:       "r",
			Action:     policy.ActionErasure,
			Categories: []string{"user.provided.identifiable.contact.email"},
			Masking:    policy.NullMasking{},
		}},
	}

	t.Run("addressed by _id when present", func(t *testing.T) {
		cfg := NewMongoConfig(customers)
		filter, update, ok := cfg.GenerateUpdate(Row{"_id": "abc123", "id": 1, "email": "x@example.com"}, nullPolicy)
		require.True(t, ok)
		assert.Equal(t, bson.M{"_id": "abc123"}, filter)
		assert.Equal(t, bson.M{"$set": bson.M{"email": nil}}, update)
	})

	t.Run("hex _id from a cached row is restored to an ObjectID", func(t *testing.T) {
		cfg := NewMongoConfig(customers)
		oid := primitive.NewObjectID()
		filter, update, ok := cfg.GenerateUpdate(Row{"_id": oid.Hex(), "id": 1, "email": "x@example.com"}, nullPolicy)
		require.True(t, ok)
		assert.Equal(t, bson.M{"_id": oid}, filter)
		assert.Equal(t, bson.M{"$set": bson.M{"email": nil}}, update)
	})

	t.Run("falls back to primary key fields", func(t *testing.T) {
		cfg := NewMongoConfig(customers)
		filter, update, ok := cfg.GenerateUpdate(Row{"id": 1, "email": "x@example.com"}, nullPolicy)
		require.True(t, ok)
		assert.Equal(t, bson.M{"id": 1}, filter)
		assert.Equal(t, bson.M{"$set": bson.M{"email": nil}}, update)
	})

	t.Run("no matched field yields no update", func(t *testing.T) {
		cfg := NewMongoConfig(customers)
		_, _, ok := cfg.GenerateUpdate(Row{"_id": "abc123", "id": 1}, nullPolicy)
		assert.False(t, ok)
	})

	t.Run("no addressable key yields no update", func(t *testing.T) {
		cfg := NewMongoConfig(customers)
		_, _, ok := cfg.GenerateUpdate(Row{"email": "x@example.com"}, nullPolicy)
		assert.False(t, ok)
	})
}
