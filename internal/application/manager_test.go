package application

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

func TestManagerLoadOrCreate(t *testing.T) {
	tests := []struct {
		name      string
		loadErr   error
		strict    bool
		wantErr   bool
		wantState domain.CatalogState
	}{
		{
			name:      "missing catalog",
			loadErr:   domain.ErrCatalogNotFound,
			wantState: domain.StateLoaded,
		},
		{
			name:      "corrupt catalog falls back",
			loadErr:   errors.New("invalid character '}'"),
			wantState: domain.StateLoaded,
		},
		{
			name:      "corrupt catalog with strict load",
			loadErr:   errors.New("invalid character '}'"),
			strict:    true,
			wantErr:   true,
			wantState: domain.StateUninitialized,
		},
		{
			name:      "missing catalog with strict load",
			loadErr:   domain.ErrCatalogNotFound,
			strict:    true,
			wantState: domain.StateLoaded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{loadErr: tt.loadErr}
			m := NewCatalogManager(repo, &countingSource{}, &output.NoOpMetrics{}, testLogger(),
				ManagerOptions{StrictLoad: tt.strict, Clock: testClock})

			err := m.LoadOrCreate(context.Background())
			if tt.wantErr {
				var le *domain.LoadError
				if !errors.As(err, &le) {
					t.Fatalf("LoadOrCreate() error = %v, want LoadError", err)
				}
			} else if err != nil {
				t.Fatalf("LoadOrCreate() error = %v", err)
			}
			if got := m.State(); got != tt.wantState {
				t.Errorf("State() = %v, want %v", got, tt.wantState)
			}
			if tt.wantErr {
				return
			}

			cat, _ := m.Catalog(context.Background())
			if cat.ID != domain.DefaultCatalogID || cat.Title != domain.DefaultCatalogTitle ||
				cat.Description != domain.DefaultCatalogDescription {
				t.Errorf("catalog = %s/%s/%s, want defaults", cat.ID, cat.Title, cat.Description)
			}
		})
	}
}

func TestManagerLoadOrCreateKeepsExisting(t *testing.T) {
	existing := domain.NewCatalog("stored", "Stored", "Stored catalog")
	existing.AddCollection(domain.NewCollection("c1", "T", "D", nil, testNow))
	repo := &mockRepository{saved: existing}

	m := NewCatalogManager(repo, &countingSource{}, &output.NoOpMetrics{}, testLogger(),
		ManagerOptions{Title: "Renamed", Clock: testClock})
	if err := m.LoadOrCreate(context.Background()); err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}

	cat, _ := m.Catalog(context.Background())
	if cat.ID != "stored" {
		t.Errorf("ID = %q, want stored", cat.ID)
	}
	if cat.Title != "Renamed" {
		t.Errorf("Title = %q, want configured override", cat.Title)
	}
	if cat.CollectionCount() != 1 {
		t.Errorf("collections = %d, want 1", cat.CollectionCount())
	}
}

func TestManagerNotLoaded(t *testing.T) {
	m := NewCatalogManager(&mockRepository{}, &countingSource{}, &output.NoOpMetrics{}, testLogger(), ManagerOptions{})

	if _, err := m.AddCollection("c1", "T", "D", nil); !errors.Is(err, domain.ErrCatalogNotLoaded) {
		t.Errorf("AddCollection() error = %v, want ErrCatalogNotLoaded", err)
	}
	if err := m.Save(context.Background()); !errors.Is(err, domain.ErrCatalogNotLoaded) {
		t.Errorf("Save() error = %v, want ErrCatalogNotLoaded", err)
	}
}

func TestManagerGlobalRasterScenario(t *testing.T) {
	m, _ := newTestManager(nil)
	ctx := context.Background()

	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatalf("AddCollection() error = %v", err)
	}
	if _, err := m.AddItem(ctx, "c1", "/data/global_10x10.tif", domain.ItemOverrides{}); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	col, err := m.Collection(ctx, "c1")
	if err != nil {
		t.Fatalf("Collection() error = %v", err)
	}
	if bbox, _ := col.Extent.BBox(); bbox != domain.GlobalBBox {
		t.Errorf("extent bbox = %v, want %v", bbox, domain.GlobalBBox)
	}
	items := col.Items()
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].ID != "global_10x10" {
		t.Errorf("item ID = %q, want global_10x10", items[0].ID)
	}
	if items[0].Collection != "c1" {
		t.Errorf("back-reference = %q, want c1", items[0].Collection)
	}
	if m.State() != domain.StateDirty {
		t.Errorf("State() = %v, want dirty", m.State())
	}
}

func TestManagerAddCollectionIdempotent(t *testing.T) {
	m, _ := newTestManager(nil)

	added, err := m.AddCollection("c1", "First", "D", nil)
	if err != nil || !added {
		t.Fatalf("first AddCollection() = %v, %v", added, err)
	}
	added, err = m.AddCollection("c1", "Second", "D", nil)
	if err != nil || added {
		t.Fatalf("second AddCollection() = %v, %v", added, err)
	}

	cols, _ := m.Collections(context.Background())
	if len(cols) != 1 {
		t.Fatalf("collections = %d, want 1", len(cols))
	}
	if cols[0].Title != "First" {
		t.Errorf("Title = %q, want the original", cols[0].Title)
	}

	if _, err := m.AddCollection("  ", "T", "D", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank id error = %v, want ErrInvalidInput", err)
	}
}

func TestManagerAddCollectionRejectsPathIDs(t *testing.T) {
	m, _ := newTestManager(nil)

	for _, id := range []string{"../escaped", "..", ".", "a/b", `a\b`} {
		t.Run(id, func(t *testing.T) {
			added, err := m.AddCollection(id, "T", "D", nil)
			if !errors.Is(err, domain.ErrInvalidInput) || added {
				t.Errorf("AddCollection(%q) = %v, %v, want ErrInvalidInput", id, added, err)
			}
		})
	}
	if n, _ := m.Counts(); n != 0 {
		t.Errorf("collections = %d, want 0", n)
	}
}

func TestManagerAddItemRelativeLocator(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	raster := &mockRaster{}
	m, _ := newTestManager(raster)
	ctx := context.Background()
	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatal(err)
	}

	item, err := m.AddItem(ctx, "c1", filepath.Join("data", "a.tif"), domain.ItemOverrides{})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	// t.TempDir may sit behind a symlink; compare against the resolved cwd.
	wd, _ := os.Getwd()
	want := filepath.Join(wd, "data", "a.tif")
	if href := item.Assets["a"].Href; href != want {
		t.Errorf("href = %q, want %q", href, want)
	}
}

func TestManagerAddItemUnknownCollection(t *testing.T) {
	raster := &mockRaster{}
	m, _ := newTestManager(raster)
	ctx := context.Background()
	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatal(err)
	}
	before, _ := m.Catalog(ctx)

	_, err := m.AddItem(ctx, "missing", "/data/a.tif", domain.ItemOverrides{})
	var cnf *domain.CollectionNotFoundError
	if !errors.As(err, &cnf) {
		t.Fatalf("AddItem() error = %v, want CollectionNotFoundError", err)
	}
	if cnf.ID != "missing" {
		t.Errorf("error names %q, want missing", cnf.ID)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("message %q does not name the collection", err.Error())
	}
	if raster.calls != 0 {
		t.Errorf("extraction ran %d times for an unknown collection", raster.calls)
	}

	after, _ := m.Catalog(ctx)
	if after.CollectionCount() != before.CollectionCount() || after.ItemCount() != before.ItemCount() {
		t.Error("tree changed after failed AddItem")
	}
}

func TestManagerAddRemoveRoundTrip(t *testing.T) {
	raster := &mockRaster{infos: map[string]*output.RasterInfo{
		"/data/a.tif": {Bounds: domain.NewBBox(0, 0, 1, 1)},
		"/data/b.tif": {Bounds: domain.NewBBox(10, 10, 20, 20)},
	}}
	m, _ := newTestManager(raster)
	ctx := context.Background()
	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatal(err)
	}

	t.Run("empty collection", func(t *testing.T) {
		before, _ := m.Collection(ctx, "c1")
		if _, err := m.AddItem(ctx, "c1", "/data/b.tif", domain.ItemOverrides{}); err != nil {
			t.Fatal(err)
		}
		if err := m.RemoveItem("c1", "b"); err != nil {
			t.Fatal(err)
		}
		after, _ := m.Collection(ctx, "c1")
		if after.ItemCount() != 0 {
			t.Errorf("items = %d, want 0", after.ItemCount())
		}
		if !after.Extent.Equal(before.Extent) {
			t.Errorf("extent = %+v, want %+v", after.Extent, before.Extent)
		}
	})

	t.Run("with existing item", func(t *testing.T) {
		if _, err := m.AddItem(ctx, "c1", "/data/a.tif", domain.ItemOverrides{}); err != nil {
			t.Fatal(err)
		}
		before, _ := m.Collection(ctx, "c1")
		if _, err := m.AddItem(ctx, "c1", "/data/b.tif", domain.ItemOverrides{}); err != nil {
			t.Fatal(err)
		}
		widened, _ := m.Collection(ctx, "c1")
		if bbox, _ := widened.Extent.BBox(); bbox != domain.NewBBox(0, 0, 20, 20) {
			t.Errorf("widened bbox = %v", bbox)
		}
		if err := m.RemoveItem("c1", "b"); err != nil {
			t.Fatal(err)
		}
		after, _ := m.Collection(ctx, "c1")
		if !after.Extent.Equal(before.Extent) {
			t.Errorf("extent = %+v, want %+v", after.Extent, before.Extent)
		}
		if after.ItemCount() != 1 {
			t.Errorf("items = %d, want 1", after.ItemCount())
		}
	})
}

func TestManagerAddItemReplaces(t *testing.T) {
	m, _ := newTestManager(nil)
	ctx := context.Background()
	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddItem(ctx, "c1", "/a/scene.tif", domain.ItemOverrides{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddItem(ctx, "c1", "/b/scene.tif", domain.ItemOverrides{}); err != nil {
		t.Fatal(err)
	}

	items, _ := m.Items(ctx, "c1")
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if href := items[0].Assets["scene"].Href; href != "/b/scene.tif" {
		t.Errorf("href = %q, want last write", href)
	}
}

func TestManagerRemoveErrors(t *testing.T) {
	m, _ := newTestManager(nil)
	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatal(err)
	}

	if err := m.RemoveItem("c1", "nope"); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("RemoveItem() error = %v, want ErrItemNotFound", err)
	}
	if err := m.RemoveItem("nope", "x"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("RemoveItem() error = %v, want ErrCollectionNotFound", err)
	}
	if err := m.RemoveCollection("nope"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("RemoveCollection() error = %v, want ErrCollectionNotFound", err)
	}
	if err := m.RemoveCollection("c1"); err != nil {
		t.Errorf("RemoveCollection() error = %v", err)
	}
	if c, _ := m.Counts(); c != 0 {
		t.Errorf("collections = %d, want 0", c)
	}
}

func TestManagerItemProperties(t *testing.T) {
	m, _ := newTestManager(nil)
	ctx := context.Background()
	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatal(err)
	}
	for _, loc := range []string{"/data/a.tif", "/data/b.tif"} {
		if _, err := m.AddItem(ctx, "c1", loc, domain.ItemOverrides{}); err != nil {
			t.Fatal(err)
		}
	}

	err := m.UpdateItemProperties("c1", "a", domain.Properties{
		"platform": domain.String("landsat-8"),
		"cloud":    domain.Number(12.5),
	})
	if err != nil {
		t.Fatalf("UpdateItemProperties() error = %v", err)
	}
	if err := m.RemoveItemProperties("c1", "a", []string{"cloud", "unknown"}); err != nil {
		t.Fatalf("RemoveItemProperties() error = %v", err)
	}

	item, _ := m.Item(ctx, "c1", "a")
	if s, _ := item.Properties["platform"].Str(); s != "landsat-8" {
		t.Errorf("platform = %v", item.Properties["platform"])
	}
	if _, ok := item.Properties["cloud"]; ok {
		t.Error("cloud should be removed")
	}

	if err := m.UpdateItemProperties("c1", "zzz", domain.Properties{}); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("unknown item error = %v", err)
	}

	n, err := m.UpdateCollectionItemsProperties("c1", domain.Properties{"mission": domain.String("x")},
		func(i *domain.Item) bool { return i.ID == "b" })
	if err != nil || n != 1 {
		t.Fatalf("UpdateCollectionItemsProperties() = %d, %v", n, err)
	}
	n, err = m.RemoveCollectionItemsProperties("c1", []string{"mission"}, nil)
	if err != nil || n != 2 {
		t.Fatalf("RemoveCollectionItemsProperties() = %d, %v", n, err)
	}
	b, _ := m.Item(ctx, "c1", "b")
	if _, ok := b.Properties["mission"]; ok {
		t.Error("mission should be removed")
	}
}

func TestManagerQueriesReturnCopies(t *testing.T) {
	m, _ := newTestManager(nil)
	ctx := context.Background()
	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddItem(ctx, "c1", "/data/a.tif", domain.ItemOverrides{}); err != nil {
		t.Fatal(err)
	}

	item, _ := m.Item(ctx, "c1", "a")
	item.Properties["mutated"] = domain.Bool(true)

	again, _ := m.Item(ctx, "c1", "a")
	if _, ok := again.Properties["mutated"]; ok {
		t.Error("query result shares state with the tree")
	}
}

func TestManagerSave(t *testing.T) {
	m, repo := newTestManager(nil)
	ctx := context.Background()
	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatal(err)
	}

	if err := m.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if m.State() != domain.StateSaved {
		t.Errorf("State() = %v, want saved", m.State())
	}
	if err := m.Save(ctx); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if repo.saves != 2 {
		t.Errorf("saves = %d, want 2", repo.saves)
	}

	repo.saveErr = errors.New("disk full")
	if _, err := m.AddCollection("c2", "T", "D", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(ctx); err == nil {
		t.Error("Save() should fail")
	}
	if m.State() != domain.StateDirty {
		t.Errorf("State() = %v, want dirty after failed save", m.State())
	}
}

func TestManagerDescribe(t *testing.T) {
	m, _ := newTestManager(nil)
	ctx := context.Background()
	if _, err := m.AddCollection("c1", "T", "D", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddItem(ctx, "c1", "/data/a.tif", domain.ItemOverrides{}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := m.Describe(&buf); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	want := "* <Catalog id=root-catalog>\n" +
		"    * <Collection id=c1>\n" +
		"      * <Item id=a>\n"
	if buf.String() != want {
		t.Errorf("Describe() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestManagerIngest(t *testing.T) {
	raster := &mockRaster{}
	m, _ := newTestManager(raster)
	ctx := context.Background()

	plan := domain.IngestPlan{
		Catalog: domain.CatalogDefaults{Title: "Planned"},
		Collections: []domain.CollectionPlan{
			{
				ID: "imagery",
				Items: []domain.ItemPlan{
					{Source: "/data/a.tif"},
					{Source: "/data/readme.txt"},
					{Source: "/data/b.tif", Overrides: domain.ItemOverrides{ID: "bee"}},
				},
			},
		},
	}

	res, err := m.Ingest(ctx, plan)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.CollectionsAdded != 1 || res.ItemsAdded != 2 || len(res.Failures) != 1 {
		t.Errorf("result = %+v", res)
	}
	if !errors.Is(res.Failures[0].Err, domain.ErrUnsupportedFormat) {
		t.Errorf("failure = %v", res.Failures[0].Err)
	}
	if _, err := m.Item(ctx, "imagery", "bee"); err != nil {
		t.Errorf("override id not applied: %v", err)
	}
	cat, _ := m.Catalog(ctx)
	if cat.Title != "Planned" {
		t.Errorf("Title = %q", cat.Title)
	}
}
