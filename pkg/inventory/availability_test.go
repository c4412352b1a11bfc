package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pmsteil/brightpearl-client/pkg/cache"
)

// fakeExecutor serves scripted responses and records every call.
type fakeExecutor struct {
	objects map[string]map[string]any
	getErr  error

	postResult []any
	postErr    error

	getPaths  []string
	postPaths []string
	postBody  any
}

func (f *fakeExecutor) GetObject(_ context.Context, path string) (map[string]any, error) {
	f.getPaths = append(f.getPaths, path)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.objects[path], nil
}

func (f *fakeExecutor) PostList(_ context.Context, path string, body any) ([]any, error) {
	f.postPaths = append(f.postPaths, path)
	f.postBody = body
	if f.postErr != nil {
		return nil, f.postErr
	}
	return f.postResult, nil
}

// availabilityPayload builds a product-availability response body in the
// shape GetObject decodes it to.
func availabilityPayload(onHand map[string]map[string]int) map[string]any {
	payload := make(map[string]any, len(onHand))
	for productID, warehouses := range onHand {
		wh := make(map[string]any, len(warehouses))
		total := 0
		for warehouseID, quantity := range warehouses {
			wh[warehouseID] = map[string]any{"onHand": float64(quantity)}
			total += quantity
		}
		payload[productID] = map[string]any{
			"warehouses": wh,
			"total":      map[string]any{"onHand": float64(total)},
		}
	}
	return payload
}

func testStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.NewStore(t.TempDir(), "token-a", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestLookup_BatchesMissingIDs(t *testing.T) {
	path := "/warehouse-service/product-availability/1007,1009,1012"
	exec := &fakeExecutor{objects: map[string]map[string]any{
		path: availabilityPayload(map[string]map[string]int{
			"1007": {"2": 5},
			"1009": {"2": 12},
			"1012": {"2": 0},
		}),
	}}
	service := NewAvailabilityService(exec, nil, zerolog.Nop())

	// Unsorted input still produces one sorted batch path.
	snapshots, err := service.Lookup(context.Background(), []int{1012, 1007, 1009})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if len(exec.getPaths) != 1 || exec.getPaths[0] != path {
		t.Errorf("request paths = %v, want [%s]", exec.getPaths, path)
	}
	if got := snapshots[1007].OnHandAt(2); got != 5 {
		t.Errorf("product 1007 on hand = %d, want 5", got)
	}
	if got := snapshots[1009].OnHandAt(2); got != 12 {
		t.Errorf("product 1009 on hand = %d, want 12", got)
	}
}

func TestLookup_AbsentProductIsZeroInventory(t *testing.T) {
	path := "/warehouse-service/product-availability/1007"
	exec := &fakeExecutor{objects: map[string]map[string]any{
		path: {}, // server omits products with no stock anywhere
	}}
	service := NewAvailabilityService(exec, nil, zerolog.Nop())

	snapshots, err := service.Lookup(context.Background(), []int{1007})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	snap, ok := snapshots[1007]
	if !ok {
		t.Fatal("absent product missing from result, want empty snapshot")
	}
	if snap.OnHandAt(2) != 0 || snap.Total.OnHand != 0 {
		t.Errorf("absent product snapshot = %+v, want zero inventory", snap)
	}
}

func TestLookup_ServesCachedSnapshots(t *testing.T) {
	path := "/warehouse-service/product-availability/1007"
	exec := &fakeExecutor{objects: map[string]map[string]any{
		path: availabilityPayload(map[string]map[string]int{"1007": {"2": 5}}),
	}}
	service := NewAvailabilityService(exec, testStore(t), zerolog.Nop())

	ctx := context.Background()
	if _, err := service.Lookup(ctx, []int{1007}); err != nil {
		t.Fatalf("first Lookup() error = %v", err)
	}

	snapshots, err := service.Lookup(ctx, []int{1007})
	if err != nil {
		t.Fatalf("second Lookup() error = %v", err)
	}

	if len(exec.getPaths) != 1 {
		t.Errorf("network calls = %d, want 1 (second lookup served from cache)", len(exec.getPaths))
	}
	if got := snapshots[1007].OnHandAt(2); got != 5 {
		t.Errorf("cached on hand = %d, want 5", got)
	}
}

func TestLookup_FetchesOnlyMissingIDs(t *testing.T) {
	firstPath := "/warehouse-service/product-availability/1007"
	secondPath := "/warehouse-service/product-availability/1009"
	exec := &fakeExecutor{objects: map[string]map[string]any{
		firstPath:  availabilityPayload(map[string]map[string]int{"1007": {"2": 5}}),
		secondPath: availabilityPayload(map[string]map[string]int{"1009": {"2": 7}}),
	}}
	service := NewAvailabilityService(exec, testStore(t), zerolog.Nop())

	ctx := context.Background()
	if _, err := service.Lookup(ctx, []int{1007}); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	// 1007 is cached; only 1009 should hit the network.
	snapshots, err := service.Lookup(ctx, []int{1007, 1009})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if len(exec.getPaths) != 2 || exec.getPaths[1] != secondPath {
		t.Errorf("request paths = %v, want second fetch for 1009 only", exec.getPaths)
	}
	if snapshots[1007].OnHandAt(2) != 5 || snapshots[1009].OnHandAt(2) != 7 {
		t.Errorf("snapshots = %+v", snapshots)
	}
}

func TestLookup_PropagatesFetchErrors(t *testing.T) {
	cause := errors.New("server error")
	exec := &fakeExecutor{getErr: cause}
	service := NewAvailabilityService(exec, nil, zerolog.Nop())

	if _, err := service.Lookup(context.Background(), []int{1007}); !errors.Is(err, cause) {
		t.Errorf("Lookup() error = %v, want wrapped cause", err)
	}
}

func TestInvalidate_ForcesNextReadFresh(t *testing.T) {
	path := "/warehouse-service/product-availability/1007"
	exec := &fakeExecutor{objects: map[string]map[string]any{
		path: availabilityPayload(map[string]map[string]int{"1007": {"2": 5}}),
	}}
	service := NewAvailabilityService(exec, testStore(t), zerolog.Nop())

	ctx := context.Background()
	if _, err := service.Lookup(ctx, []int{1007}); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if err := service.Invalidate(1007); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := service.Lookup(ctx, []int{1007}); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if len(exec.getPaths) != 2 {
		t.Errorf("network calls = %d, want 2 after invalidation", len(exec.getPaths))
	}
}

func TestSnapshotFrom_RejectsUnexpectedPayload(t *testing.T) {
	if _, err := snapshotFrom("not an object"); err == nil {
		t.Error("snapshotFrom() accepted a string payload")
	}
}
