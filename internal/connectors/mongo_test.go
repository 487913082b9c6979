package connectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vk/privgraph/internal/cache"
)

func TestFlattenDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	doc := bson.M{
		"_id":   oid,
		"email": "x@example.com",
		"address": bson.M{
			"city": "Springfield",
			"geo":  bson.A{41.1, -87.6},
		},
		"aliases":    bson.A{"xavier", bson.M{"handle": "xv"}},
		"profile":    bson.D{{Key: "plan", Value: "pro"}, {Key: "seats", Value: int32(4)}},
		"created_at": primitive.NewDateTimeFromTime(created),
		"avatar":     primitive.Binary{Subtype: 0, Data: []byte("png")},
		"deleted_at": primitive.Null{},
	}

	row := flattenDocument(doc)

	assert.Equal(t, oid.Hex(), row["_id"])
	assert.Equal(t, map[string]any{
		"city": "Springfield",
		"geo":  []any{41.1, -87.6},
	}, row["address"])
	assert.Equal(t, []any{"xavier", map[string]any{"handle": "xv"}}, row["aliases"])
	assert.Equal(t, map[string]any{"plan": "pro", "seats": int32(4)}, row["profile"])
	assert.Equal(t, created, row["created_at"])
	assert.Equal(t, []byte("png"), row["avatar"])
	assert.Nil(t, row["deleted_at"])
}

// Flattened documents must survive the cache round trip; before flattening,
// any subdocument or array made the whole node uncacheable.
func TestFlattenedDocumentRoundTripsThroughCache(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	row := flattenDocument(bson.M{
		"_id":   oid,
		"email": "x@example.com",
		"address": bson.M{
			"city": "Springfield",
			"zip":  bson.A{"60601", "60602"},
		},
		"created_at": primitive.NewDateTimeFromTime(created),
	})

	data, err := cache.EncodeRows([]map[string]any{row})
	require.NoError(t, err)

	rows, err := cache.DecodeRows(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := rows[0]
	assert.Equal(t, oid.Hex(), got["_id"])
	assert.Equal(t, "x@example.com", got["email"])
	assert.Equal(t, map[string]any{
		"city": "Springfield",
		"zip":  []any{"60601", "60602"},
	}, got["address"])
	assert.Equal(t, created.Format(time.RFC3339Nano), got["created_at"])
}
