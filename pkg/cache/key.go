package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Well-known cache keys.
const (
	// KeyLiveProducts addresses the cached set of all live products.
	KeyLiveProducts = "live_products"
)

// AvailabilityKey returns the cache key for one product's warehouse
// availability snapshot.
func AvailabilityKey(productID int) string {
	return fmt.Sprintf("availability_%d", productID)
}

// Fingerprint derives a deterministic short key from a set of
// identifiers. The ids are sorted before hashing so the same set always
// produces the same key regardless of input order.
func Fingerprint(prefix string, ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(sum[:6]))
}

// Namespace derives the short per-account namespace from an account
// reference. It prefixes every filename in the store.
func Namespace(accountRef string) string {
	sum := sha256.Sum256([]byte(accountRef))
	return hex.EncodeToString(sum[:4])
}
