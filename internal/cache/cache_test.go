package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/privgraph/internal/fieldref"
)

func TestKeyScheme(t *testing.T) {
	addr := fieldref.NewCollectionAddress("postgres_example", "customer")

	assert.Equal(t, "req_1__access_request__postgres_example:customer", ResultKey("req_1", addr))
	assert.Equal(t, "req_1__access_request__", ResultPrefix("req_1"))
	assert.Equal(t, "id-req_1-identity-email", IdentityKey("req_1", "email"))
	assert.Equal(t, "id-req_1-", IdentityPrefix("req_1"))

	t.Run("address round trip", func(t *testing.T) {
		got, ok := AddressFromResultKey(ResultKey("req_1", addr), "req_1")
		require.True(t, ok)
		assert.Equal(t, addr, got)
	})

	t.Run("foreign request does not parse", func(t *testing.T) {
		_, ok := AddressFromResultKey(ResultKey("req_1", addr), "req_2")
		assert.False(t, ok)
	})

	t.Run("malformed suffix does not parse", func(t *testing.T) {
		_, ok := AddressFromResultKey("req_1__access_request__justacollection", "req_1")
		assert.False(t, ok)
	})
}

func TestCodecRoundTrip(t *testing.T) {
	rows := []map[string]any{
		{"id": 7, "email": "x@example.com", "active": true, "score": 1.5},
		{"id": 8, "email": nil, "tags": []any{"a", "b"}},
	}

	data, err := EncodeRows(rows)
	require.NoError(t, err)
	decoded, err := DecodeRows(data)
	require.NoError(t, err)

	require.Len(t, decoded, 2)
	// Integers come back as float64: the canonical form has one number type.
	assert.Equal(t, float64(7), decoded[0]["id"])
	assert.Equal(t, "x@example.com", decoded[0]["email"])
	assert.Equal(t, true, decoded[0]["active"])
	assert.Equal(t, 1.5, decoded[0]["score"])
	assert.Nil(t, decoded[1]["email"])
	assert.Equal(t, []any{"a", "b"}, decoded[1]["tags"])
}

func TestCodecNormalization(t *testing.T) {
	t.Run("bytes become strings", func(t *testing.T) {
		data, err := EncodeValue([]byte("raw"))
		require.NoError(t, err)
		v, err := DecodeValue(data)
		require.NoError(t, err)
		assert.Equal(t, "raw", v)
	})

	t.Run("timestamps become RFC3339", func(t *testing.T) {
		ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
		data, err := EncodeValue(ts)
		require.NoError(t, err)
		v, err := DecodeValue(data)
		require.NoError(t, err)
		assert.Equal(t, "2024-05-01T12:30:00Z", v)
	})

	t.Run("unrepresentable values are rejected", func(t *testing.T) {
		type opaque struct{ f func() }
		_, err := EncodeValue(opaque{})
		assert.ErrorContains(t, err, "no cache representation")

		_, err = EncodeRows([]map[string]any{{"bad": opaque{}}})
		assert.ErrorContains(t, err, "encode row 0")
	})

	t.Run("empty payload decodes to nil rows", func(t *testing.T) {
		rows, err := DecodeRows(nil)
		require.NoError(t, err)
		assert.Nil(t, rows)
	})

	t.Run("non-list payload is rejected", func(t *testing.T) {
		_, err := DecodeRows([]byte(`{"not":"a list"}`))
		assert.ErrorContains(t, err, "want list")
	})
}

func TestMemoryClient(t *testing.T) {
	ctx := context.Background()

	t.Run("set get delete", func(t *testing.T) {
		c := NewMemoryClient()
		require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 0))

		got, err := c.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		_, err = c.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("entries expire", func(t *testing.T) {
		c := NewMemoryClient()
		require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Millisecond))
		time.Sleep(5 * time.Millisecond)
		_, err := c.Get(ctx, "k1")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("prefix scan and delete", func(t *testing.T) {
		c := NewMemoryClient()
		require.NoError(t, c.Set(ctx, "req_1__a", []byte("1"), 0))
		require.NoError(t, c.Set(ctx, "req_1__b", []byte("2"), 0))
		require.NoError(t, c.Set(ctx, "req_2__a", []byte("3"), 0))

		got, err := c.GetByPrefix(ctx, "req_1__")
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{"req_1__a": []byte("1"), "req_1__b": []byte("2")}, got)

		require.NoError(t, c.DeleteByPrefix(ctx, "req_1__"))
		got, err = c.GetByPrefix(ctx, "req_1__")
		require.NoError(t, err)
		assert.Empty(t, got)

		// Other requests untouched.
		_, err = c.Get(ctx, "req_2__a")
		assert.NoError(t, err)
	})

	t.Run("values are copied", func(t *testing.T) {
		c := NewMemoryClient()
		src := []byte("abc")
		require.NoError(t, c.Set(ctx, "k", src, 0))
		src[0] = 'z'
		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)
	})

	t.Run("ping and close are no-ops", func(t *testing.T) {
		c := NewMemoryClient()
		assert.NoError(t, c.Ping(ctx))
		assert.NoError(t, c.Close())
	})
}
