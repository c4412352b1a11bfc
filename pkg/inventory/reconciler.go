package inventory

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pmsteil/brightpearl-client/pkg/product"
)

// Prometheus metrics for reconciliation.
var (
	bpCorrectionsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bp_corrections_submitted_total",
		Help: "Total stock corrections submitted",
	})

	bpReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bp_reconciliations_total",
		Help: "Total reconciliation runs by outcome",
	}, []string{"outcome"}) // "submitted", "noop", "failed"
)

// Defaults applied to corrections when the config leaves them empty.
const (
	defaultReason   = "stock reconciliation"
	defaultCurrency = "USD"
	defaultCost     = "0.00"
)

// ProductSource supplies the current live product set for resolution.
// *product.Service satisfies it.
type ProductSource interface {
	ListLive(ctx context.Context, bypassCache bool) ([]product.Record, error)
}

// ReconcilerConfig carries the correction attributes the service
// requires on every submitted delta.
type ReconcilerConfig struct {
	// Reason is attached to every correction.
	Reason string

	// CostCurrency and CostValue price each correction.
	CostCurrency string
	CostValue    string
}

// Reconciler computes quantity deltas between desired and observed
// stock, submits them as one correction batch, and invalidates the
// availability cache for every product it touched.
type Reconciler struct {
	products     ProductSource
	availability *AvailabilityService
	exec         Executor
	config       ReconcilerConfig
	logger       zerolog.Logger
}

// NewReconciler creates a reconciler. Empty config fields fall back to
// the package defaults.
func NewReconciler(products ProductSource, availability *AvailabilityService, exec Executor, cfg ReconcilerConfig, logger zerolog.Logger) *Reconciler {
	if cfg.Reason == "" {
		cfg.Reason = defaultReason
	}
	if cfg.CostCurrency == "" {
		cfg.CostCurrency = defaultCurrency
	}
	if cfg.CostValue == "" {
		cfg.CostValue = defaultCost
	}

	return &Reconciler{
		products:     products,
		availability: availability,
		exec:         exec,
		config:       cfg,
		logger:       logger.With().Str("component", "bp-reconciler").Logger(),
	}
}

// Reconcile drives one reconciliation for a warehouse: resolve the input
// keys, fetch current on-hand stock, compute deltas, submit the non-zero
// ones as a single batch, and invalidate the availability cache for
// every submitted product. Desired maps a SKU or numeric product id to
// the wanted on-hand quantity. The returned correction ids are in
// submission order.
//
// The batch is all-or-nothing: the service either accepts it whole or
// the call fails; no partial-success path exists.
func (r *Reconciler) Reconcile(ctx context.Context, warehouseID int, desired map[string]int) ([]int, error) {
	if warehouseID <= 0 {
		return nil, fmt.Errorf("warehouse id must be a positive integer, got %d", warehouseID)
	}

	// Resolving.
	resolved, err := r.resolve(ctx, desired)
	if err != nil {
		bpReconciliationsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	productIDs := make([]int, 0, len(resolved))
	for id := range resolved {
		productIDs = append(productIDs, id)
	}
	sort.Ints(productIDs)

	// Fetching current stock.
	snapshots, err := r.availability.Lookup(ctx, productIDs)
	if err != nil {
		bpReconciliationsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// Computing deltas.
	var corrections []Correction
	for _, id := range productIDs {
		onHand := snapshots[id].OnHandAt(warehouseID)
		delta := resolved[id] - onHand
		if delta == 0 {
			continue
		}

		r.logger.Debug().
			Int("product_id", id).
			Int("desired", resolved[id]).
			Int("on_hand", onHand).
			Int("delta", delta).
			Msg("Stock delta computed")

		corrections = append(corrections, Correction{
			Quantity:   delta,
			ProductID:  id,
			Reason:     r.config.Reason,
			LocationID: warehouseID,
			Cost:       Cost{Currency: r.config.CostCurrency, Value: r.config.CostValue},
		})
	}

	if len(corrections) == 0 {
		r.logger.Info().
			Int("warehouse_id", warehouseID).
			Int("products", len(productIDs)).
			Msg("Stock already reconciled, nothing to submit")
		bpReconciliationsTotal.WithLabelValues("noop").Inc()
		return []int{}, nil
	}

	// Submitting.
	path := fmt.Sprintf("/warehouse-service/warehouse/%d/stock-correction", warehouseID)
	raw, err := r.exec.PostList(ctx, path, correctionBatch{Corrections: corrections})
	if err != nil {
		bpReconciliationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("submit correction batch: %w", err)
	}

	ids, err := correctionIDs(raw)
	if err != nil {
		bpReconciliationsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// Invalidating: every submitted product is forced fresh on its next
	// availability read, regardless of its individual outcome.
	for _, correction := range corrections {
		if err := r.availability.Invalidate(correction.ProductID); err != nil {
			r.logger.Warn().
				Err(err).
				Int("product_id", correction.ProductID).
				Msg("Failed to invalidate availability cache")
		}
	}

	bpCorrectionsSubmittedTotal.Add(float64(len(corrections)))
	bpReconciliationsTotal.WithLabelValues("submitted").Inc()

	r.logger.Info().
		Int("warehouse_id", warehouseID).
		Int("corrections", len(corrections)).
		Ints("correction_ids", ids).
		Msg("Correction batch accepted")

	return ids, nil
}

// resolve maps each desired key, a SKU or a numeric product id, to its
// product id using the live product set. Unresolved keys are a hard
// input error raised before any mutation.
func (r *Reconciler) resolve(ctx context.Context, desired map[string]int) (map[int]int, error) {
	live, err := r.products.ListLive(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list live products: %w", err)
	}

	bySKU := make(map[string]int, len(live))
	byID := make(map[int]bool, len(live))
	for _, p := range live {
		bySKU[p.SKU] = p.ID
		byID[p.ID] = true
	}

	resolved := make(map[int]int, len(desired))
	var unresolved []string

	for key, quantity := range desired {
		if id, ok := bySKU[key]; ok {
			resolved[id] = quantity
			continue
		}
		if id, err := strconv.Atoi(key); err == nil && byID[id] {
			resolved[id] = quantity
			continue
		}
		unresolved = append(unresolved, key)
	}

	if len(unresolved) > 0 {
		return nil, &ResolutionError{Keys: unresolved}
	}
	return resolved, nil
}

// correctionIDs decodes the endpoint's id list. JSON numbers decode as
// float64.
func correctionIDs(raw []any) ([]int, error) {
	ids := make([]int, 0, len(raw))
	for _, v := range raw {
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("unexpected correction id of type %T", v)
		}
		ids = append(ids, int(n))
	}
	return ids, nil
}
