package catalog

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

type fakeInventory struct {
	mu    sync.Mutex
	tags  []string
	err   error
	calls int
}

func (f *fakeInventory) ImageTags(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.tags, f.err
}

func TestProbe(t *testing.T) {
	inv := &fakeInventory{tags: []string{
		"ruby:3.2.0-alpine",
		"ruby:3.2.4-alpine",
		"ruby:3.10.0",
		"alpine:latest",
	}}
	p := NewProber(testCatalog(t), inv)

	snap, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	wantAvail := []string{"3.10.0", "3.2.4", "3.2.0"}
	if !reflect.DeepEqual(snap.AvailableVersions, wantAvail) {
		t.Errorf("available = %v, want %v", snap.AvailableVersions, wantAvail)
	}
	if snap.TotalAvailable != 3 {
		t.Errorf("totalAvailable = %d, want 3", snap.TotalAvailable)
	}
	if snap.TotalConfigured != 4 {
		t.Errorf("totalConfigured = %d, want 4", snap.TotalConfigured)
	}
	if snap.LatestVersion == nil || *snap.LatestVersion != "3.10.0" {
		t.Errorf("latestVersion = %v, want 3.10.0", snap.LatestVersion)
	}

	wantGroups := map[string][]string{
		"3.10": {"3.10.0"},
		"3.2":  {"3.2.4", "3.2.0"},
	}
	if !reflect.DeepEqual(snap.GroupedByMinorVersion, wantGroups) {
		t.Errorf("groups = %v, want %v", snap.GroupedByMinorVersion, wantGroups)
	}
}

func TestProbeNothingAvailable(t *testing.T) {
	p := NewProber(testCatalog(t), &fakeInventory{})

	snap, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if snap.LatestVersion != nil {
		t.Errorf("latestVersion = %q, want nil", *snap.LatestVersion)
	}
	if snap.AvailableVersions == nil || len(snap.AvailableVersions) != 0 {
		t.Errorf("available = %#v, want empty non-nil slice", snap.AvailableVersions)
	}
}

func TestProbeIsNotCached(t *testing.T) {
	inv := &fakeInventory{}
	p := NewProber(testCatalog(t), inv)
	ctx := context.Background()

	snap, _ := p.Probe(ctx)
	if snap.TotalAvailable != 0 {
		t.Fatalf("totalAvailable = %d, want 0", snap.TotalAvailable)
	}

	inv.mu.Lock()
	inv.tags = []string{"ruby:3.9.5-alpine"}
	inv.mu.Unlock()

	snap, _ = p.Probe(ctx)
	if snap.TotalAvailable != 1 {
		t.Errorf("totalAvailable = %d after image pull, want 1", snap.TotalAvailable)
	}
	if inv.calls != 2 {
		t.Errorf("inventory calls = %d, want 2", inv.calls)
	}
}

func TestProbeInventoryError(t *testing.T) {
	p := NewProber(testCatalog(t), &fakeInventory{err: errors.New("daemon unreachable")})
	if _, err := p.Probe(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestMissing(t *testing.T) {
	inv := &fakeInventory{tags: []string{"ruby:3.10.0", "ruby:3.2.0-alpine"}}
	p := NewProber(testCatalog(t), inv)

	missing, err := p.Missing(context.Background())
	if err != nil {
		t.Fatalf("Missing: %v", err)
	}
	want := []string{"3.9.5", "3.2.4"}
	if !reflect.DeepEqual(missing, want) {
		t.Errorf("missing = %v, want %v", missing, want)
	}
}

func TestProbeConcurrent(t *testing.T) {
	p := NewProber(testCatalog(t), &fakeInventory{tags: []string{"ruby:3.10.0"}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Probe(context.Background()); err != nil {
				t.Errorf("Probe: %v", err)
			}
		}()
	}
	wg.Wait()
}
