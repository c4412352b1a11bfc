// Package order retrieves orders from the Brightpearl order-search
// endpoint.
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pmsteil/brightpearl-client/pkg/pagination"
)

// ErrInvalidStatusID is returned when a listing is requested for a
// non-positive status id. It is raised before any network access.
var ErrInvalidStatusID = errors.New("status id must be a positive integer")

// defaultPageSize is the page size used for order walks.
const defaultPageSize = 500

// Record is one order row from order-search.
type Record struct {
	OrderID            int
	OrderTypeID        int
	ContactID          int
	OrderStatusID      int
	OrderStockStatusID int
}

// Service lists orders through the page walker.
type Service struct {
	walker *pagination.Walker
	logger zerolog.Logger

	// PageSize overrides the page size used for walks.
	PageSize int
}

// NewService creates an order service over the given searcher.
func NewService(searcher pagination.Searcher, logger zerolog.Logger) *Service {
	return &Service{
		walker:   pagination.NewWalker(searcher, logger),
		logger:   logger.With().Str("component", "bp-orders").Logger(),
		PageSize: defaultPageSize,
	}
}

// GetByStatus returns every order currently in the given status, decoded
// into typed records.
func (s *Service) GetByStatus(ctx context.Context, statusID int) ([]Record, error) {
	raw, err := s.GetByStatusRaw(ctx, statusID)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(raw))
	for _, row := range raw {
		records = append(records, fromRow(row))
	}

	s.logger.Debug().
		Int("status_id", statusID).
		Int("orders", len(records)).
		Msg("Parsed order records")

	return records, nil
}

// GetByStatusRaw returns the same listing as named, untyped records for
// callers that want columns beyond the typed set.
func (s *Service) GetByStatusRaw(ctx context.Context, statusID int) ([]pagination.Record, error) {
	if statusID <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidStatusID, statusID)
	}

	path := fmt.Sprintf("/order-service/order-search?orderStatusId=%d", statusID)
	return s.walker.FetchAll(ctx, path, s.PageSize, nil)
}

// fromRow builds a typed record from a named order row. Missing or
// non-numeric columns decode as zero.
func fromRow(row pagination.Record) Record {
	return Record{
		OrderID:            intField(row, "orderId"),
		OrderTypeID:        intField(row, "orderTypeId"),
		ContactID:          intField(row, "contactId"),
		OrderStatusID:      intField(row, "orderStatusId"),
		OrderStockStatusID: intField(row, "orderStockStatusId"),
	}
}

// intField reads a numeric column. JSON numbers decode as float64.
func intField(row pagination.Record, name string) int {
	switch v := row[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
