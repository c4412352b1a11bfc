// Package product lists and caches the account's live product set.
package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pmsteil/brightpearl-client/pkg/cache"
	"github.com/pmsteil/brightpearl-client/pkg/pagination"
)

// StatusLive is the product status that marks a product as part of the
// live set.
const StatusLive = "LIVE"

const (
	defaultPageSize = 500
	defaultCacheTTL = 60 * time.Minute
)

// Record is one product from product-search. ID and SKU are both unique
// within a live set.
type Record struct {
	ID           int            `json:"productId"`
	Name         string         `json:"productName"`
	SKU          string         `json:"sku"`
	Status       string         `json:"status"`
	StockTracked bool           `json:"stockTracked"`
	Attrs        map[string]any `json:"attrs,omitempty"`
}

// Service lists live products, caching the full set under a fixed key so
// repeated resolutions do not re-walk the listing.
type Service struct {
	walker *pagination.Walker
	store  *cache.Store
	logger zerolog.Logger

	// PageSize overrides the page size used for walks.
	PageSize int

	// CacheTTL bounds how long a cached live set is served.
	CacheTTL time.Duration
}

// NewService creates a product service. store may be nil to disable
// caching entirely.
func NewService(searcher pagination.Searcher, store *cache.Store, logger zerolog.Logger) *Service {
	return &Service{
		walker:   pagination.NewWalker(searcher, logger),
		store:    store,
		logger:   logger.With().Str("component", "bp-products").Logger(),
		PageSize: defaultPageSize,
		CacheTTL: defaultCacheTTL,
	}
}

// ListLive returns every live product. The set is served from the cache
// when a fresh entry exists, unless bypassCache forces a new walk; a
// fresh walk overwrites the cached set.
func (s *Service) ListLive(ctx context.Context, bypassCache bool) ([]Record, error) {
	if s.store != nil && !bypassCache {
		if cached, err := s.store.Get(cache.KeyLiveProducts, s.CacheTTL); err == nil {
			var records []Record
			if err := json.Unmarshal(cached, &records); err == nil {
				return records, nil
			}
			// Unreadable entry: fall through to a fresh walk.
			s.logger.Warn().Msg("Cached live product set unreadable, refetching")
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("read live product cache: %w", err)
		}
	}

	rows, err := s.walker.FetchAll(ctx, "/product-service/product-search", s.PageSize, func(row pagination.Record) bool {
		status, _ := row["status"].(string)
		return status == StatusLive
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, fromRow(row))
	}

	if s.store != nil {
		if err := s.store.Put(cache.KeyLiveProducts, records); err != nil {
			// Caching is best effort; the listing itself succeeded.
			s.logger.Warn().Err(err).Msg("Failed to cache live product set")
		}
	}

	s.logger.Info().
		Int("products", len(records)).
		Msg("Live product set refreshed")

	return records, nil
}

// fromRow builds a typed product from a named search row. The full row
// is kept as the attribute map.
func fromRow(row pagination.Record) Record {
	id, _ := row["productId"].(float64)
	name, _ := row["productName"].(string)
	sku, _ := row["SKU"].(string)
	status, _ := row["status"].(string)
	stockTracked, _ := row["stockTracked"].(bool)

	return Record{
		ID:           int(id),
		Name:         name,
		SKU:          sku,
		Status:       status,
		StockTracked: stockTracked,
		Attrs:        row,
	}
}
