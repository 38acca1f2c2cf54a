package scm

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// batchFetchLimit bounds the number of concurrent content fetches.
const batchFetchLimit = 8

// BatchFileContents fetches several file contents at a ref concurrently.
// Failures are isolated per item: a failed fetch is logged and the item
// dropped, the remaining fetches proceed. The returned slice preserves the
// order of the requested paths for items that succeeded.
func BatchFileContents(ctx context.Context, p Provider, ref string, paths []string) []FileContent {
	results := make([]*FileContent, len(paths))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFetchLimit)

	for i, path := range paths {
		g.Go(func() error {
			content, err := p.GetFileContent(gctx, ref, path)
			if err != nil {
				log.Printf("[Batch] Dropping %s at %s: %v", path, ref, err)
				return nil
			}
			mu.Lock()
			results[i] = &FileContent{Path: path, Content: content}
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only propagates context cancellation.
	_ = g.Wait()

	out := make([]FileContent, 0, len(paths))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
