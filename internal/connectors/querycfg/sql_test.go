package querycfg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/privgraph/internal/fieldref"
	"github.com/vk/privgraph/internal/graph"
	"github.com/vk/privgraph/internal/policy"
)

func testNode(t *testing.T, collection string) *graph.Node {
	t.Helper()
	g, err := graph.Build(context.Background(), graph.Dataset{
		Name:          "shop",
		ConnectionKey: "pg_1",
		Collections: []graph.Collection{
			{
				Name: "customers",
				Fields: []graph.Field{
					{Name: "id", PrimaryKey: true},
					{Name: "email", Identity: "email", DataCategories: []string{"user.provided.identifiable.contact.email"}},
					{Name: "name", DataCategories: []string{"user.provided.identifiable.name"}},
				},
			},
			{
				Name: "orders",
				Fields: []graph.Field{
					{Name: "id", PrimaryKey: true},
					{Name: "customer_id", References: []fieldref.Reference{{
						Remote:    fieldref.NewFieldAddress("shop", "customers", "id"),
						Direction: fieldref.DirectionFrom,
					}}},
					{Name: "shipping_email", References: []fieldref.Reference{{
						Remote:    fieldref.NewFieldAddress("shop", "customers", "email"),
						Direction: fieldref.DirectionFrom,
					}}, DataCategories: []string{"user.provided.identifiable.contact.email"}},
				},
			},
		},
	})
	require.NoError(t, err)
	node := g.Nodes[fieldref.NewCollectionAddress("shop", collection)]
	require.NotNil(t, node)
	return node
}

func TestFilterValues(t *testing.T) {
	node := testNode(t, "orders")

	t.Run("keeps only declared query fields", func(t *testing.T) {
		got := FilterValues(node, map[string][]any{
			"customer_id": {1, 2},
			"id":          {99},
			"unknown":     {"x"},
		})
		assert.Equal(t, map[string][]any{"customer_id": {1, 2}}, got)
	})

	t.Run("drops nils and duplicates", func(t *testing.T) {
		got := FilterValues(node, map[string][]any{
			"customer_id":    {1, nil, 1, 2},
			"shipping_email": {nil, nil},
		})
		assert.Equal(t, map[string][]any{"customer_id": {1, 2}}, got)
	})

	t.Run("empty input yields empty map", func(t *testing.T) {
		assert.Empty(t, FilterValues(node, nil))
	})
}

func TestSQLGenerateQuery(t *testing.T) {
	orders := testNode(t, "orders")
	customers := testNode(t, "customers")

	t.Run("single value is an equality", func(t *testing.T) {
		cfg := NewSQLConfig(customers, PlaceholderQuestion)
		op, ok := cfg.GenerateQuery(map[string][]any{"email": {"x@example.com"}})
		require.True(t, ok)
		assert.Equal(t, "SELECT id, email, name FROM customers WHERE email = ?", op.SQL)
		assert.Equal(t, []any{"x@example.com"}, op.Args)
	})

	t.Run("multiple values become set membership", func(t *testing.T) {
		cfg := NewSQLConfig(orders, PlaceholderQuestion)
		op, ok := cfg.GenerateQuery(map[string][]any{"customer_id": {1, 2}})
		require.True(t, ok)
		assert.Equal(t, "SELECT id, customer_id, shipping_email FROM orders WHERE customer_id IN (?, ?)", op.SQL)
		assert.Equal(t, []any{1, 2}, op.Args)
	})

	t.Run("multiple fields are OR-joined in sorted order", func(t *testing.T) {
		cfg := NewSQLConfig(orders, PlaceholderQuestion)
		op, ok := cfg.GenerateQuery(map[string][]any{
			"shipping_email": {"x@example.com"},
			"customer_id":    {1, 2},
		})
		require.True(t, ok)
		assert.Equal(t,
			"SELECT id, customer_id, shipping_email FROM orders WHERE customer_id IN (?, ?) OR shipping_email = ?",
			op.SQL)
		assert.Equal(t, []any{1, 2, "x@example.com"}, op.Args)
	})

	t.Run("dollar placeholders are numbered", func(t *testing.T) {
		cfg := NewSQLConfig(orders, PlaceholderDollar)
		op, ok := cfg.GenerateQuery(map[string][]any{
			"shipping_email": {"x@example.com"},
			"customer_id":    {1, 2},
		})
		require.True(t, ok)
		assert.Equal(t,
			"SELECT id, customer_id, shipping_email FROM orders WHERE customer_id IN ($1, $2) OR shipping_email = $3",
			op.SQL)
	})

	t.Run("no usable predicate yields no query", func(t *testing.T) {
		cfg := NewSQLConfig(orders, PlaceholderQuestion)
		_, ok := cfg.GenerateQuery(map[string][]any{"customer_id": {nil}})
		assert.False(t, ok)

		_, ok = cfg.GenerateQuery(nil)
		assert.False(t, ok)
	})
}

func TestSQLGenerateUpdate(t *testing.T) {
	customers := testNode(t, "customers")
	erasure := func(m policy.MaskingStrategy, categories ...string) policy.Policy {
		return policy.Policy{
			Name:  "erase",
			Rules: []policy.Rule{{Name: "r", Action: policy.ActionErasure, Categories: categories, Masking: m}},
		}
	}
	row := Row{"id": 1, "email": "x@example.com", "name": "John Customer"}

	t.Run("null masking over matched fields", func(t *testing.T) {
		cfg := NewSQLConfig(customers, PlaceholderQuestion)
		op, ok := cfg.GenerateUpdate(row, erasure(policy.NullMasking{}, "user.provided.identifiable"))
		require.True(t, ok)
		assert.Equal(t, "UPDATE customers SET email = ?, name = ? WHERE id = ?", op.SQL)
		assert.Equal(t, []any{nil, nil, 1}, op.Args)
	})

	t.Run("rewrite masking keeps unmatched fields untouched", func(t *testing.T) {
		cfg := NewSQLConfig(customers, PlaceholderQuestion)
		op, ok := cfg.GenerateUpdate(row, erasure(policy.RewriteMasking{Replacement: "*****"}, "user.provided.identifiable.name"))
		require.True(t, ok)
		assert.Equal(t, "UPDATE customers SET name = ? WHERE id = ?", op.SQL)
		assert.Equal(t, []any{"*****", 1}, op.Args)
	})

	t.Run("hash masking produces a digest", func(t *testing.T) {
		cfg := NewSQLConfig(customers, PlaceholderQuestion)
		op, ok := cfg.GenerateUpdate(row, erasure(policy.HashMasking{Algorithm: "SHA-256"}, "user.provided.identifiable.contact.email"))
		require.True(t, ok)
		assert.Equal(t, "UPDATE customers SET email = ? WHERE id = ?", op.SQL)
		require.Len(t, op.Args, 2)
		digest, isString := op.Args[0].(string)
		require.True(t, isString)
		assert.Len(t, digest, 64)
		assert.NotEqual(t, "x@example.com", digest)
	})

	t.Run("no matched field yields no update", func(t *testing.T) {
		cfg := NewSQLConfig(customers, PlaceholderQuestion)
		_, ok := cfg.GenerateUpdate(row, erasure(policy.NullMasking{}, "system.operations"))
		assert.False(t, ok)
	})

	t.Run("missing primary key value yields no update", func(t *testing.T) {
		cfg := NewSQLConfig(customers, PlaceholderQuestion)
		_, ok := cfg.GenerateUpdate(Row{"email": "x@example.com"}, erasure(policy.NullMasking{}, "user.provided.identifiable"))
		assert.False(t, ok)
	})

	t.Run("dollar placeholders", func(t *testing.T) {
		cfg := NewSQLConfig(customers, PlaceholderDollar)
		op, ok := cfg.GenerateUpdate(row, erasure(policy.NullMasking{}, "user.provided.identifiable"))
		require.True(t, ok)
		assert.Equal(t, "UPDATE customers SET email = $1, name = $2 WHERE id = $3", op.SQL)
	})
}
