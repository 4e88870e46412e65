package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

// PrefetchJob warms the cache for one date in one arc mode.
type PrefetchJob struct {
	Date       time.Time
	Mode       models.ArcMode
	VariantID  string
	MinPax     int
	SpreadDays int
}

// PrefetchPool warms the fetch cache for dates adjacent to the one being
// viewed, so stepping after a scrub hits cache instead of upstream.
type PrefetchPool struct {
	numWorkers int
	jobs       chan PrefetchJob
	svc        *Service
	wg         sync.WaitGroup
}

func NewPrefetchPool(numWorkers, bufferSize int, svc *Service) *PrefetchPool {
	return &PrefetchPool{
		numWorkers: numWorkers,
		jobs:       make(chan PrefetchJob, bufferSize),
		svc:        svc,
	}
}

func (p *PrefetchPool) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *PrefetchPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.process(ctx, job)
		}
	}
}

func (p *PrefetchPool) process(ctx context.Context, job PrefetchJob) {
	var err error
	switch job.Mode {
	case models.ArcModeSpread:
		if _, err = p.svc.SpreadArcs(ctx, job.VariantID, job.SpreadDays); err == nil {
			_, err = p.svc.Detections(ctx, job.VariantID, job.SpreadDays)
		}
	default:
		_, err = p.svc.FlightArcs(ctx, job.Date, job.MinPax)
	}
	if err != nil {
		slog.Debug("prefetch failed", "date", job.Date.Format(dateFormat), "mode", job.Mode, "error", err)
	}
}

// Submit queues a warmup job. Drops the job when the buffer is full: a scrub
// burst must never block the event loop on prefetch capacity.
func (p *PrefetchPool) Submit(job PrefetchJob) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

func (p *PrefetchPool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
