package storage

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/janelia-flyem/surfaces/dvid"
	"github.com/janelia-flyem/surfaces/surface"
)

func testExport(t *testing.T, id int64) *surface.Export {
	s, err := surface.New(surface.Range{0, 2}, surface.Range{0, 1}, surface.Range{4, 4},
		[][][]float64{{{-1, 0.25, -1}, {0, 1, -2}}})
	if err != nil {
		t.Fatalf("couldn't make surface: %v\n", err)
	}
	return surface.NewExport([]*surface.Surface{s.WithID(id)}, surface.Metadata{SourceSoftware: "storage test"})
}

func openTestStore(t *testing.T) *BadgerStore {
	db, err := OpenBadger("")
	if err != nil {
		t.Fatalf("couldn't open in-memory badger: %v\n", err)
	}
	return db
}

func checkStore(t *testing.T, store Store) {
	if names, err := store.List(); err != nil || len(names) != 0 {
		t.Fatalf("expected empty store, got %v (%v)\n", names, err)
	}
	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing set, got %v\n", err)
	}
	for _, name := range []string{"b", "a", "c"} {
		if err := store.Put(name, testExport(t, int64(name[0]))); err != nil {
			t.Fatalf("couldn't put %q: %v\n", name, err)
		}
	}
	names, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error listing: %v\n", err)
	}
	if !reflect.DeepEqual(names, []string{"a", "b", "c"}) {
		t.Errorf("expected sorted names [a b c], got %v\n", names)
	}
	want := testExport(t, 'b')
	for i := 0; i < 2; i++ {
		got, err := store.Get("b")
		if err != nil {
			t.Fatalf("unexpected error getting b: %v\n", err)
		}
		if len(got.Surfaces) != 1 || !got.Surfaces[0].Equal(want.Surfaces[0]) {
			t.Errorf("stored surface changed: %v\n", got.Surfaces)
		}
		if got.Metadata.SourceSoftware != "storage test" {
			t.Errorf("metadata not stored: %+v\n", got.Metadata)
		}
	}

	// overwrite
	if err := store.Put("b", testExport(t, 99)); err != nil {
		t.Fatalf("couldn't overwrite b: %v\n", err)
	}
	got, err := store.Get("b")
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if id, _ := got.Surfaces[0].ID(); id != 99 {
		t.Errorf("expected overwritten id 99, got %d\n", id)
	}

	if err := store.Delete("b"); err != nil {
		t.Fatalf("couldn't delete b: %v\n", err)
	}
	if _, err := store.Get("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v\n", err)
	}
	if err := store.Delete("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v\n", err)
	}
	for _, bad := range []string{"", "a/b"} {
		if err := store.Put(bad, testExport(t, 1)); err == nil {
			t.Errorf("expected error putting name %q\n", bad)
		}
	}
}

func TestBadgerStore(t *testing.T) {
	db := openTestStore(t)
	defer db.Close()
	checkStore(t, db)
}

func TestBadgerCompression(t *testing.T) {
	db := openTestStore(t)
	defer db.Close()
	for _, compress := range []dvid.Compression{dvid.Uncompressed, dvid.Snappy, dvid.LZ4, dvid.Gzip, dvid.Zstd} {
		db.SetCompression(compress)
		if err := db.Put("set", testExport(t, 5)); err != nil {
			t.Fatalf("%s: couldn't put: %v\n", compress, err)
		}
		value, err := db.getRaw("set")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v\n", compress, err)
		}
		if _, c, err := dvid.DeserializeData(value, false); err != nil || c != compress {
			t.Errorf("expected stored compression %s, got %s (%v)\n", compress, c, err)
		}
		if _, err := db.Get("set"); err != nil {
			t.Errorf("%s: unexpected error reading back: %v\n", compress, err)
		}
	}
}

func TestBadgerDirectory(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("couldn't open badger: %v\n", err)
	}
	if err := db.Put("persisted", testExport(t, 3)); err != nil {
		t.Fatalf("couldn't put: %v\n", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("couldn't close: %v\n", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v\n", err)
	}

	db, err = OpenBadger(dir)
	if err != nil {
		t.Fatalf("couldn't reopen badger: %v\n", err)
	}
	defer db.Close()
	exp, err := db.Get("persisted")
	if err != nil {
		t.Fatalf("couldn't get after reopen: %v\n", err)
	}
	if id, _ := exp.Surfaces[0].ID(); id != 3 {
		t.Errorf("expected id 3 after reopen, got %d\n", id)
	}
}

func TestCachedStore(t *testing.T) {
	cached := NewCachedStore(openTestStore(t), 4)
	defer cached.Close()
	checkStore(t, cached)

	c, ok := cached.(*CachedStore)
	if !ok {
		t.Fatalf("expected *CachedStore, got %T\n", cached)
	}
	hits, attempts := c.Stats()
	if attempts == 0 || hits == 0 {
		t.Errorf("expected cache hits, got %d of %d\n", hits, attempts)
	}

	// a cache of size 0 is no cache
	db := openTestStore(t)
	defer db.Close()
	if s := NewCachedStore(db, 0); s != Store(db) {
		t.Errorf("expected uncached store for size 0\n")
	}
}

func TestCachedStoreCompression(t *testing.T) {
	db := openTestStore(t)
	cached := NewCachedStore(db, 4)
	defer cached.Close()
	for _, compress := range []dvid.Compression{dvid.Snappy, dvid.LZ4, dvid.Uncompressed} {
		db.SetCompression(compress)
		if err := cached.Put("set", testExport(t, 2)); err != nil {
			t.Fatalf("%s: couldn't put: %v\n", compress, err)
		}
		value, err := db.getRaw("set")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v\n", compress, err)
		}
		if _, c, err := dvid.DeserializeData(value, false); err != nil || c != compress {
			t.Errorf("expected cached put to store with %s, got %s (%v)\n", compress, c, err)
		}
		if _, err := cached.Get("set"); err != nil {
			t.Errorf("%s: unexpected error reading back: %v\n", compress, err)
		}
	}
}

func TestSetCompressionConcurrent(t *testing.T) {
	db := openTestStore(t)
	defer db.Close()
	exp := testExport(t, 8)
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.Put("set", exp)
		}(i)
	}
	for _, compress := range []dvid.Compression{dvid.Snappy, dvid.Gzip, dvid.Zstd} {
		db.SetCompression(compress)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("put %d failed: %v\n", i, err)
		}
	}
	if _, err := db.Get("set"); err != nil {
		t.Errorf("unexpected error reading back: %v\n", err)
	}
}

func TestCachedStoreConcurrent(t *testing.T) {
	cached := NewCachedStore(openTestStore(t), 4)
	defer cached.Close()
	if err := cached.Put("shared", testExport(t, 1)); err != nil {
		t.Fatalf("couldn't put: %v\n", err)
	}
	exps := make([]*surface.Export, 16)
	for i := range exps {
		exps[i] = testExport(t, int64(i))
	}
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				if err := cached.Put("shared", exps[i]); err != nil {
					errs <- err
				}
				return
			}
			if _, err := cached.Get("shared"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent access failed: %v\n", err)
	}
}
