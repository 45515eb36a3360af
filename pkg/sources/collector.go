package sources

import (
	"context"
	"sync"
	"time"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/bundle"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/logger"
)

// Collector fans the per-source reads out concurrently, each with its own
// timeout, and returns the successful contributions in input order next to the
// per-source failures. The reads share no mutable state so they need no locking
// beyond the result slots.
type Collector struct {
	Hub     Reader
	Managed Reader
	Timeout time.Duration
}

// Collect reads every source. The first return value lists the sources that
// succeeded, in the same order they were given (hub first, then inventory
// order), ready for bundle.Merge. The second maps failed source ids to their
// *ReadError.
func (c *Collector) Collect(ctx context.Context,
	srcs []CertificateSource,
) ([]bundle.SourceCertificates, map[string]error) {
	log := logger.ZapLogger("source-collector")

	type slot struct {
		certs []bundle.CertificatePEM
		err   error
	}
	slots := make([]slot, len(srcs))

	var wg sync.WaitGroup
	for i := range srcs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			readCtx, cancel := context.WithTimeout(ctx, c.Timeout)
			defer cancel()

			reader := c.Managed
			if srcs[i].Kind == HubSource {
				reader = c.Hub
			}
			slots[i].certs, slots[i].err = reader.Read(readCtx, srcs[i])
		}(i)
	}
	wg.Wait()

	contributions := make([]bundle.SourceCertificates, 0, len(srcs))
	failures := map[string]error{}
	for i, src := range srcs {
		if slots[i].err != nil {
			log.Warnw("source failed, continuing with remaining sources",
				"source", src.ID, "error", slots[i].err)
			failures[src.ID] = slots[i].err
			continue
		}
		contributions = append(contributions, bundle.SourceCertificates{
			SourceID: src.ID,
			Certs:    slots[i].certs,
		})
	}
	return contributions, failures
}
