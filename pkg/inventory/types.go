// Package inventory reads warehouse availability and reconciles observed
// stock against desired levels through correction batches.
package inventory

import (
	"fmt"
	"sort"
	"strings"
)

// WarehouseLevels is the stock position of one product in one warehouse.
// All values are non-negative; a warehouse absent from a snapshot holds
// zero inventory.
type WarehouseLevels struct {
	InStock   int `json:"inStock"`
	OnHand    int `json:"onHand"`
	Allocated int `json:"allocated"`
	InTransit int `json:"inTransit"`
}

// Snapshot is one product's availability across warehouses plus the
// aggregate total.
type Snapshot struct {
	Warehouses map[string]WarehouseLevels `json:"warehouses"`
	Total      WarehouseLevels            `json:"total"`
}

// OnHandAt returns the on-hand quantity at a warehouse, zero when the
// warehouse does not appear in the snapshot.
func (s Snapshot) OnHandAt(warehouseID int) int {
	return s.Warehouses[fmt.Sprintf("%d", warehouseID)].OnHand
}

// Cost is the monetary cost attached to a correction.
type Cost struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

// Correction is one entry of a stock-correction batch. Quantity is the
// signed delta desired minus currentOnHand; zero deltas are never
// submitted.
type Correction struct {
	Quantity   int    `json:"quantity"`
	ProductID  int    `json:"productId"`
	Reason     string `json:"reason"`
	LocationID int    `json:"locationId"`
	Cost       Cost   `json:"cost"`
}

// correctionBatch is the wire body of the correction endpoint.
type correctionBatch struct {
	Corrections []Correction `json:"corrections"`
}

// ResolutionError reports input keys that did not match any live
// product. It is raised before any network mutation is attempted.
type ResolutionError struct {
	Keys []string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	keys := make([]string, len(e.Keys))
	copy(keys, e.Keys)
	sort.Strings(keys)
	return fmt.Sprintf("unknown product identifiers: %s", strings.Join(keys, ", "))
}
