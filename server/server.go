package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/janelia-flyem/surfaces/dvid"
	"github.com/janelia-flyem/surfaces/storage"
)

// ShutdownDelay is how long in-flight requests get to finish once shutdown starts.
const ShutdownDelay = 5 * time.Second

// the store of surface sets in use by the running server
var store storage.Store

// Initialize opens the configured store and loads authorization.  LoadConfig should
// be called first unless defaults are wanted.
func Initialize() error {
	if err := loadAuthFile(); err != nil {
		return err
	}
	db, err := storage.OpenBadger(tc.Store.Path)
	if err != nil {
		return err
	}
	if tc.Store.Compression != "" {
		compress, err := dvid.ParseCompression(tc.Store.Compression)
		if err != nil {
			db.Close()
			return err
		}
		db.SetCompression(compress)
	}
	store = storage.NewCachedStore(db, CacheSize())
	initRoutes()
	return nil
}

// Shutdown closes the store.
func Shutdown() {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		dvid.Errorf("Error closing store: %v\n", err)
	}
	store = nil
}

// Serve listens on the configured HTTP address until the context is cancelled, then
// gives in-flight requests ShutdownDelay to finish.
func Serve(ctx context.Context) error {
	if store == nil {
		return fmt.Errorf("server not initialized")
	}
	srv := &http.Server{
		Addr:    HTTPAddress(),
		Handler: corsHandler(webMux),
	}
	errCh := make(chan error, 1)
	go func() {
		dvid.Infof("Web server listening at %s ...\n", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		dvid.Infof("Shutting down web server, waiting up to %s for requests...\n", ShutdownDelay)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownDelay)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
