package traversal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/privgraph/internal/fieldref"
	"github.com/vk/privgraph/internal/graph"
)

// collection builds a minimal declaration with optional identity and refs.
func collection(name string, fields ...graph.Field) graph.Collection {
	return graph.Collection{Name: name, Fields: fields}
}

func identityField(name, attr string) graph.Field {
	return graph.Field{Name: name, Identity: attr}
}

func refField(name, target string, dir fieldref.Direction) graph.Field {
	remote, err := fieldref.ParseFieldAddress(target, "")
	if err != nil {
		panic(err)
	}
	return graph.Field{Name: name, References: []fieldref.Reference{{Remote: remote, Direction: dir}}}
}

func mustBuild(t *testing.T, datasets ...graph.Dataset) *graph.DatasetGraph {
	t.Helper()
	g, err := graph.Build(context.Background(), datasets...)
	require.NoError(t, err)
	return g
}

func orderStrings(tr *Traversal) []string {
	out := make([]string, len(tr.Order))
	for i, n := range tr.Order {
		out[i] = n.Address.String()
	}
	return out
}

func TestPlanSeedThenDependent(t *testing.T) {
	// users has identity field email; orders.user_email is fed from it.
	g := mustBuild(t, graph.Dataset{
		Name:          "app",
		ConnectionKey: "db",
		Collections: []graph.Collection{
			collection("users", identityField("email", "email")),
			collection("orders", refField("user_email", "app:users:email", fieldref.DirectionFrom)),
		},
	})

	tr, err := Plan(g, map[string]any{"email": "x@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"app:users", "app:orders"}, orderStrings(tr))
	require.Len(t, tr.Layers, 2)
}

func TestPlanVisitsEveryNodeOnceAfterInputs(t *testing.T) {
	// Diamond: customers feeds orders and payment_cards, both feed audits.
	g := mustBuild(t, graph.Dataset{
		Name:          "shop",
		ConnectionKey: "db",
		Collections: []graph.Collection{
			collection("customers", identityField("email", "email"), graph.Field{Name: "id"}),
			collection("orders",
				refField("customer_id", "shop:customers:id", fieldref.DirectionFrom),
				graph.Field{Name: "id"}),
			collection("payment_cards",
				refField("customer_id", "shop:customers:id", fieldref.DirectionFrom),
				graph.Field{Name: "id"}),
			collection("audits",
				refField("order_id", "shop:orders:id", fieldref.DirectionFrom),
				refField("card_id", "shop:payment_cards:id", fieldref.DirectionFrom)),
		},
	})

	tr, err := Plan(g, map[string]any{"email": "x@example.com"})
	require.NoError(t, err)
	require.Len(t, tr.Order, 4)

	seen := map[string]int{}
	for i, n := range tr.Order {
		seen[n.Address.String()] = i
	}
	assert.Len(t, seen, 4, "each node visited exactly once")
	assert.Less(t, seen["shop:customers"], seen["shop:orders"])
	assert.Less(t, seen["shop:customers"], seen["shop:payment_cards"])
	assert.Less(t, seen["shop:orders"], seen["shop:audits"])
	assert.Less(t, seen["shop:payment_cards"], seen["shop:audits"])

	// Middle layer nodes are independent and grouped together.
	require.Len(t, tr.Layers, 3)
	assert.Len(t, tr.Layers[1], 2)
}

func TestPlanIsDeterministic(t *testing.T) {
	build := func() *graph.DatasetGraph {
		return mustBuild(t, graph.Dataset{
			Name:          "shop",
			ConnectionKey: "db",
			Collections: []graph.Collection{
				collection("customers", identityField("email", "email"), graph.Field{Name: "id"}),
				collection("orders", refField("customer_id", "shop:customers:id", fieldref.DirectionFrom)),
				collection("addresses", refField("customer_id", "shop:customers:id", fieldref.DirectionFrom)),
				collection("tickets", refField("customer_id", "shop:customers:id", fieldref.DirectionFrom)),
			},
		})
	}

	first, err := Plan(build(), map[string]any{"email": "x"})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Plan(build(), map[string]any{"email": "x"})
		require.NoError(t, err)
		assert.Equal(t, orderStrings(first), orderStrings(again))
	}
}

func TestPlanCycle(t *testing.T) {
	// orders and customers reference each other.
	g := mustBuild(t, graph.Dataset{
		Name:          "shop",
		ConnectionKey: "db",
		Collections: []graph.Collection{
			collection("users", identityField("email", "email"), graph.Field{Name: "id"}),
			collection("orders",
				refField("user_id", "shop:users:id", fieldref.DirectionFrom),
				refField("customer_ref", "shop:customers:id", fieldref.DirectionFrom),
				graph.Field{Name: "id"}),
			collection("customers",
				refField("order_ref", "shop:orders:id", fieldref.DirectionFrom),
				graph.Field{Name: "id"}),
		},
	})

	_, err := Plan(g, map[string]any{"email": "x"})
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, []string{"shop:orders", "shop:customers"}, cerr.Node.String())
}

func TestPlanUnreachable(t *testing.T) {
	g := mustBuild(t, graph.Dataset{
		Name:          "shop",
		ConnectionKey: "db",
		Collections: []graph.Collection{
			collection("users", identityField("email", "email")),
			collection("island", graph.Field{Name: "id"}),
		},
	})

	_, err := Plan(g, map[string]any{"email": "x"})
	var uerr *UnreachableError
	require.ErrorAs(t, err, &uerr)
	require.Len(t, uerr.Nodes, 1)
	assert.Equal(t, "shop:island", uerr.Nodes[0].String())
}

func TestPlanNoMatchingSeed(t *testing.T) {
	g := mustBuild(t, graph.Dataset{
		Name:          "shop",
		ConnectionKey: "db",
		Collections:   []graph.Collection{collection("users", identityField("email", "email"))},
	})

	_, err := Plan(g, map[string]any{"phone_number": "555"})
	var serr *NoSeedError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, []string{"phone_number"}, serr.Provided)
}

func TestPlanNullSeedDryRun(t *testing.T) {
	// Validation passes null placeholders; planning must behave identically.
	g := mustBuild(t, graph.Dataset{
		Name:          "app",
		ConnectionKey: "db",
		Collections: []graph.Collection{
			collection("users", identityField("email", "email")),
			collection("orders", refField("user_email", "app:users:email", fieldref.DirectionFrom)),
		},
	})

	tr, err := Plan(g, map[string]any{"email": nil})
	require.NoError(t, err)
	assert.Equal(t, []string{"app:users", "app:orders"}, orderStrings(tr))
}

func TestPlanSelfLoopDoesNotCycle(t *testing.T) {
	g := mustBuild(t, graph.Dataset{
		Name:          "hr",
		ConnectionKey: "db",
		Collections: []graph.Collection{
			collection("employees",
				identityField("email", "email"),
				graph.Field{Name: "id"},
				refField("manager_id", "hr:employees:id", fieldref.DirectionFrom)),
		},
	})

	tr, err := Plan(g, map[string]any{"email": "x"})
	require.NoError(t, err)
	require.Len(t, tr.Order, 1)
}
