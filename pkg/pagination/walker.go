package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pmsteil/brightpearl-client/pkg/client"
)

// Prometheus metrics for page walks.
var (
	bpPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bp_pages_fetched_total",
		Help: "Total number of search pages fetched",
	})

	bpPageWalkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bp_page_walk_duration_seconds",
		Help:    "Duration of complete page walks",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300},
	})
)

// Searcher fetches one search page. *client.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, path string, pageSize, firstResult int) (*client.SearchPage, error)
}

// Record is one search row with the reported column names zipped onto
// its positional values.
type Record map[string]any

// Predicate filters records during a walk. A nil predicate keeps
// everything.
type Predicate func(Record) bool

// Walker retrieves logically unbounded collections that the service only
// exposes in fixed-size pages.
type Walker struct {
	searcher Searcher
	logger   zerolog.Logger
}

// NewWalker creates a walker over the given searcher.
func NewWalker(searcher Searcher, logger zerolog.Logger) *Walker {
	return &Walker{
		searcher: searcher,
		logger:   logger.With().Str("component", "bp-pagination").Logger(),
	}
}

// FetchAll walks every page of path, starting at the first result, and
// returns the accumulated records that pass pred. A failure on any page
// aborts the whole walk with no partial result; the error names the
// offset at which the walk died.
func (w *Walker) FetchAll(ctx context.Context, path string, pageSize int, pred Predicate) ([]Record, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	start := time.Now()
	defer func() {
		bpPageWalkDuration.Observe(time.Since(start).Seconds())
	}()

	var records []Record
	first := 1
	fetched := 0
	pages := 0

	for {
		page, err := w.searcher.Search(ctx, path, pageSize, first)
		if err != nil {
			return nil, fmt.Errorf("page starting at result %d: %w", first, err)
		}

		meta := page.MetaData
		pages++
		bpPagesFetchedTotal.Inc()

		w.logger.Debug().
			Str("path", path).
			Int("first_result", meta.FirstResult).
			Int("last_result", meta.LastResult).
			Int("results_returned", meta.ResultsReturned).
			Int("results_available", meta.ResultsAvailable).
			Bool("more_pages", meta.MorePagesAvailable).
			Msg("Fetched search page")

		if meta.ResultsReturned > 0 && meta.LastResult < meta.FirstResult {
			return nil, fmt.Errorf("page starting at result %d: inconsistent metadata: lastResult %d < firstResult %d",
				first, meta.LastResult, meta.FirstResult)
		}

		for _, row := range page.Results {
			record := zipRow(meta.Columns, row)
			if pred == nil || pred(record) {
				records = append(records, record)
			}
		}

		fetched += meta.ResultsReturned

		// Loop control counts fetched rows, not records kept by the
		// predicate; a filtering predicate must not stall the walk.
		if fetched >= meta.ResultsAvailable || !meta.MorePagesAvailable {
			break
		}
		if meta.ResultsReturned == 0 {
			return nil, fmt.Errorf("page starting at result %d: server reports more pages but returned no rows", first)
		}

		first = meta.LastResult + 1
	}

	w.logger.Info().
		Str("path", path).
		Int("pages", pages).
		Int("rows_fetched", fetched).
		Int("records_kept", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Page walk complete")

	return records, nil
}

// zipRow names a positional row's values by the reported column list.
// Trailing values without a column, or columns without a value, are
// dropped.
func zipRow(columns []client.Column, row []any) Record {
	record := make(Record, len(columns))
	for i, column := range columns {
		if i >= len(row) {
			break
		}
		record[column.Name] = row[i]
	}
	return record
}
