package application

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

func newTestWorkspace() *Workspace {
	extractor := NewExtractor(Backends{Raster: &mockRaster{}}, &output.NoOpMetrics{}, testLogger())
	return NewWorkspace(extractor, &output.NoOpMetrics{}, testLogger(), ManagerOptions{Clock: testClock})
}

func TestWorkspaceOpen(t *testing.T) {
	w := newTestWorkspace()
	ctx := context.Background()

	a, err := w.Open(ctx, "", &mockRepository{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := w.Open(ctx, "", &mockRepository{}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := w.Open(ctx, "named", &mockRepository{}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	want := []string{"named", "root-catalog-1", "root-catalog-2"}
	if got := w.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	cat, _ := a.Catalog(ctx)
	if cat.ID != "root-catalog-1" {
		t.Errorf("catalog ID = %q", cat.ID)
	}

	if _, err := w.Open(ctx, "named", &mockRepository{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("duplicate Open() error = %v", err)
	}
}

func TestWorkspaceGetRemove(t *testing.T) {
	w := newTestWorkspace()
	ctx := context.Background()
	repo := &mockRepository{}

	m, err := w.Open(ctx, "c", repo)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddCollection("col", "T", "D", nil); err != nil {
		t.Fatal(err)
	}

	got, err := w.Get("c")
	if err != nil || got != m {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if _, err := w.Get("nope"); !errors.Is(err, domain.ErrCatalogNotFound) {
		t.Errorf("Get() error = %v", err)
	}

	if err := w.Remove(ctx, "c"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(w.List()) != 0 {
		t.Errorf("List() = %v, want empty", w.List())
	}
	if repo.saved == nil || repo.saved.CollectionCount() != 0 {
		t.Error("removed catalog should be saved empty")
	}
	if err := w.Remove(ctx, "c"); !errors.Is(err, domain.ErrCatalogNotFound) {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestWorkspaceSaveAll(t *testing.T) {
	w := newTestWorkspace()
	ctx := context.Background()
	good := &mockRepository{}
	bad := &mockRepository{saveErr: errors.New("read-only")}

	if _, err := w.Open(ctx, "good", good); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Open(ctx, "bad", bad); err != nil {
		t.Fatal(err)
	}

	err := w.SaveAll(ctx)
	if err == nil {
		t.Fatal("SaveAll() should report the failing catalog")
	}
	if good.saves != 1 {
		t.Errorf("good catalog saves = %d, want 1", good.saves)
	}
}

func TestWorkspaceOpenKeepsLoadedID(t *testing.T) {
	w := newTestWorkspace()
	ctx := context.Background()
	repo := &mockRepository{saved: domain.NewCatalog("usgs-dem", "DEM", "Elevation")}

	m, err := w.Open(ctx, "", repo)
	if err != nil {
		t.Fatal(err)
	}
	cat, _ := m.Catalog(ctx)
	if cat.ID != "usgs-dem" {
		t.Errorf("catalog ID = %q, want the loaded one", cat.ID)
	}
	if _, err := w.Get("root-catalog-1"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
}
