package surface

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/surfaces/dvid"
)

// DecodeParallel is Decode with per-surface validation spread over up to workers
// goroutines (GOMAXPROCS if workers < 1).  The result is identical to Decode: surfaces
// keep document order and, if several elements are bad, the error reported is the one
// for the lowest index.
func DecodeParallel(ctx context.Context, v interface{}, workers int) ([]*Surface, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, newError(ErrMalformedDocument, NoAxis, "top-level value is %s, not a list", jsonKind(v))
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || len(list) < 2 {
		return Decode(v)
	}
	timedLog := dvid.NewTimeLog()

	surfaces := make([]*Surface, len(list))
	errs := make([]error, len(list))

	// lowest index that failed so far; elements past it needn't be decoded.
	var lowest atomic.Int64
	lowest.Store(int64(len(list)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range list {
		i := i
		if int64(i) > lowest.Load() {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if int64(i) > lowest.Load() {
				return nil
			}
			s, err := decodeSurface(list[i])
			if err != nil {
				errs[i] = atSurface(err, i)
				for {
					cur := lowest.Load()
					if int64(i) >= cur || lowest.CompareAndSwap(cur, int64(i)) {
						break
					}
				}
				return nil
			}
			surfaces[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if n := lowest.Load(); n < int64(len(list)) {
		dvid.Debugf("parallel decode of %d surfaces failed at index %d\n", len(list), n)
		return nil, errs[n]
	}
	timedLog.Debugf("decoded %d surfaces with %d workers", len(list), workers)
	return surfaces, nil
}
