package cache

import (
	"strings"

	"github.com/vk/privgraph/internal/fieldref"
)

// Key scheme. Result rows for one node live under
// "<request>__access_request__<dataset>:<collection>"; cached identity seeds
// under "id-<request>-identity-<attribute>". Both families share the request
// id so DeleteRequest can clear them together, and cross-request collisions
// are impossible without any locking.

const resultInfix = "__access_request__"

// ResultKey returns the cache key for one node's retrieved rows.
func ResultKey(requestID string, addr fieldref.CollectionAddress) string {
	return requestID + resultInfix + addr.String()
}

// ResultPrefix returns the prefix covering all node results of a request.
func ResultPrefix(requestID string) string {
	return requestID + resultInfix
}

// IdentityKey returns the cache key for one cached identity seed value.
func IdentityKey(requestID, attribute string) string {
	return "id-" + requestID + "-identity-" + attribute
}

// IdentityPrefix returns the prefix covering all cached seeds of a request.
func IdentityPrefix(requestID string) string {
	return "id-" + requestID + "-"
}

// AddressFromResultKey recovers the collection address from a result key.
func AddressFromResultKey(key, requestID string) (fieldref.CollectionAddress, bool) {
	prefix := ResultPrefix(requestID)
	if !strings.HasPrefix(key, prefix) {
		return fieldref.CollectionAddress{}, false
	}
	parts := strings.SplitN(key[len(prefix):], ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fieldref.CollectionAddress{}, false
	}
	return fieldref.NewCollectionAddress(parts[0], parts[1]), true
}
