package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pmsteil/brightpearl-client/pkg/cache"
)

// defaultAvailabilityTTL bounds how long a cached availability snapshot
// is served.
const defaultAvailabilityTTL = 5 * time.Minute

// Executor performs the API calls the inventory layer needs.
// *client.Client satisfies it.
type Executor interface {
	GetObject(ctx context.Context, path string) (map[string]any, error)
	PostList(ctx context.Context, path string, body any) ([]any, error)
}

// AvailabilityService batch-fetches per-product warehouse availability,
// backed by per-product cache entries.
type AvailabilityService struct {
	exec   Executor
	store  *cache.Store
	logger zerolog.Logger

	// TTL overrides how long cached snapshots are served.
	TTL time.Duration
}

// NewAvailabilityService creates an availability lookup. store may be
// nil to disable caching.
func NewAvailabilityService(exec Executor, store *cache.Store, logger zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		exec:   exec,
		store:  store,
		logger: logger.With().Str("component", "bp-availability").Logger(),
		TTL:    defaultAvailabilityTTL,
	}
}

// Lookup returns one snapshot per requested product. Products the server
// omits from its response hold zero inventory everywhere and come back
// as empty snapshots. Cached snapshots are served per product; only the
// missing ones go to the network, in a single batched call.
func (s *AvailabilityService) Lookup(ctx context.Context, productIDs []int) (map[int]Snapshot, error) {
	snapshots := make(map[int]Snapshot, len(productIDs))

	var missing []int
	for _, id := range productIDs {
		if snap, ok := s.cached(id); ok {
			snapshots[id] = snap
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return snapshots, nil
	}
	sort.Ints(missing)

	segments := make([]string, len(missing))
	for i, id := range missing {
		segments[i] = strconv.Itoa(id)
	}

	path := "/warehouse-service/product-availability/" + strings.Join(segments, ",")
	payload, err := s.exec.GetObject(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch availability: %w", err)
	}

	for _, id := range missing {
		snap, err := snapshotFrom(payload[strconv.Itoa(id)])
		if err != nil {
			return nil, fmt.Errorf("availability for product %d: %w", id, err)
		}
		snapshots[id] = snap

		if s.store != nil {
			if err := s.store.Put(cache.AvailabilityKey(id), snap); err != nil {
				s.logger.Warn().Err(err).Int("product_id", id).Msg("Failed to cache availability")
			}
		}
	}

	s.logger.Debug().
		Int("requested", len(productIDs)).
		Int("fetched", len(missing)).
		Msg("Availability lookup complete")

	return snapshots, nil
}

// Invalidate drops the cached snapshot for one product so the next read
// is forced fresh.
func (s *AvailabilityService) Invalidate(productID int) error {
	if s.store == nil {
		return nil
	}
	return s.store.Invalidate(cache.AvailabilityKey(productID))
}

// cached returns a fresh cached snapshot for id, if one exists.
func (s *AvailabilityService) cached(id int) (Snapshot, bool) {
	if s.store == nil {
		return Snapshot{}, false
	}

	raw, err := s.store.Get(cache.AvailabilityKey(id), s.TTL)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Int("product_id", id).Msg("Availability cache read failed")
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn().Err(err).Int("product_id", id).Msg("Cached availability unreadable")
		return Snapshot{}, false
	}
	return snap, true
}

// snapshotFrom decodes one product's availability payload. A nil value
// (product absent from the response) is an empty snapshot: absence means
// zero inventory.
func snapshotFrom(value any) (Snapshot, error) {
	if value == nil {
		return Snapshot{}, nil
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return Snapshot{}, fmt.Errorf("unexpected availability payload of type %T", value)
	}

	// Round-trip through JSON rather than walking the loose map by hand.
	data, err := json.Marshal(obj)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
