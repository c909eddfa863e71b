package storage

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/surfaces/dvid"
	"github.com/janelia-flyem/surfaces/surface"
)

// BadgerStore keeps surface sets in a Badger key-value database.
type BadgerStore struct {
	// Directory of datastore, or "" if in-memory.
	directory string

	compressMu sync.RWMutex
	compress   dvid.Compression

	bdp *badger.DB

	// stopSyncCh is used to signal the sync goroutine to stop.
	stopSyncCh chan struct{}
	closeOnce  sync.Once
}

// OpenBadger returns a Badger-backed store at path, creating the directory if needed.
// An empty path opens an in-memory database that is discarded on Close.
func OpenBadger(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			dvid.Infof("Database not already at path (%s). Creating directory...\n", path)
			if err := os.MkdirAll(path, 0744); err != nil {
				return nil, fmt.Errorf("Can't make directory at %s: %v", path, err)
			}
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1).WithSyncWrites(false)

	bdp, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("unable to open badger @ %q: %v", path, err)
	}
	db := &BadgerStore{
		directory:  path,
		compress:   DefaultCompression,
		bdp:        bdp,
		stopSyncCh: make(chan struct{}),
	}
	if path != "" {
		go db.syncPeriodically()
	}
	dvid.Infof("Opened %s\n", db)
	return db, nil
}

// SetCompression sets the compression used for values written from now on, including
// values written through a CachedStore wrapping this store.  Previously stored values
// record their own compression.
func (db *BadgerStore) SetCompression(compress dvid.Compression) {
	db.compressMu.Lock()
	db.compress = compress
	db.compressMu.Unlock()
}

func (db *BadgerStore) compression() dvid.Compression {
	db.compressMu.RLock()
	defer db.compressMu.RUnlock()
	return db.compress
}

// Periodically sync to prevent too many writes from being buffered
// if server crashes.
func (db *BadgerStore) syncPeriodically() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopSyncCh:
			dvid.Debugf("Stopping sync goroutine for %s\n", db)
			return
		case <-ticker.C:
			if err := db.bdp.Sync(); err != nil {
				dvid.Errorf("Unable to sync %s: %v\n", db, err)
			}
		}
	}
}

func (db *BadgerStore) String() string {
	if db.directory == "" {
		return "badger (in-memory)"
	}
	return fmt.Sprintf("badger @ %s", db.directory)
}

// Close closes the database.  It is safe to call more than once.
func (db *BadgerStore) Close() error {
	var err error
	db.closeOnce.Do(func() {
		close(db.stopSyncCh)
		err = db.bdp.Close()
		dvid.Infof("Closed %s\n", db)
	})
	return err
}

func (db *BadgerStore) Put(name string, exp *surface.Export) error {
	if err := CheckName(name); err != nil {
		return err
	}
	value, err := encodeValue(exp, db.compression())
	if err != nil {
		return err
	}
	return db.putRaw(name, value)
}

func (db *BadgerStore) putRaw(name string, value []byte) error {
	err := db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set(nameKey(name), value)
	})
	if err != nil {
		return err
	}
	dvid.Debugf("Stored surface set %q (%s) in %s\n", name, humanize.Bytes(uint64(len(value))), db)
	return nil
}

func (db *BadgerStore) Get(name string) (*surface.Export, error) {
	value, err := db.getRaw(name)
	if err != nil {
		return nil, err
	}
	exp, err := decodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("stored surface set %q is corrupt: %v", name, err)
	}
	return exp, nil
}

func (db *BadgerStore) getRaw(name string) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	var value []byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nameKey(name))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes a surface set.  It returns ErrNotFound if there's nothing stored
// under the name.
func (db *BadgerStore) Delete(name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	return db.bdp.Update(func(txn *badger.Txn) error {
		k := nameKey(name)
		if _, err := txn.Get(k); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(k)
	})
}

// List returns the names of all stored surface sets in sorted order.
func (db *BadgerStore) List() ([]string, error) {
	names := []string{}
	err := db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // key only
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			names = append(names, string(k[len(prefix):]))
		}
		return nil
	})
	return names, err
}
