package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cryptoquote/internal/channel/fetch"
	"cryptoquote/internal/metrics"
	"cryptoquote/logger"
	"cryptoquote/models"
)

// Collector fetches one snapshot from every source with at most MaxWorkers
// requests in flight.
type Collector struct {
	sources    []Source
	throttle   *Throttle
	maxWorkers int
	log        *logger.Log
	now        func() time.Time
}

func NewCollector(sources []Source, throttle *Throttle, maxWorkers int) *Collector {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if throttle == nil {
		throttle = NewThrottle(0)
	}
	return &Collector{
		sources:    sources,
		throttle:   throttle,
		maxWorkers: maxWorkers,
		log:        logger.GetLogger(),
		now:        time.Now,
	}
}

// Collect returns one RawSnapshot per source, in source order. It returns
// only after every source has either delivered data or failed.
func (c *Collector) Collect(ctx context.Context) []models.RawSnapshot {
	log := c.log.WithComponent("collector").WithFields(logger.Fields{
		"sources":     len(c.sources),
		"max_workers": c.maxWorkers,
	})
	log.Info("collecting snapshots")
	start := c.now()

	out := make([]models.RawSnapshot, len(c.sources))
	if len(c.sources) == 0 {
		return out
	}

	ch := fetch.NewChannels(len(c.sources))
	workers := c.maxWorkers
	if workers > len(c.sources) {
		workers = len(c.sources)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range ch.Jobs {
				res := c.fetchOne(ctx, job)
				metrics.ReportFetch(c.log, res.Snapshot, res.Throttled)
				ch.SendResult(ctx, res)
			}
		}()
	}

	for i, src := range c.sources {
		if !ch.SendJob(ctx, fetch.Job{Index: i, Source: src.Name()}) {
			break
		}
	}
	ch.CloseJobs()

	go func() {
		wg.Wait()
		ch.CloseResults()
	}()

	done := make([]bool, len(c.sources))
	for res := range ch.Results {
		out[res.Index] = res.Snapshot
		done[res.Index] = true
	}

	for i, src := range c.sources {
		if done[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = errors.New("fetch abandoned")
		}
		out[i] = models.RawSnapshot{
			Source:    src.Name(),
			Format:    src.Format(),
			Symbol:    src.Symbol(),
			FetchedAt: c.now().UTC(),
			Err:       fmt.Errorf("%s: %w", src.Name(), err),
		}
	}

	failed := 0
	for _, snap := range out {
		if snap.Failed() {
			failed++
		}
	}
	logger.LogPerformanceEntry(log, "collector", "collect", c.now().Sub(start), logger.Fields{
		"failed": failed,
	})
	stats := ch.GetStats()
	log.WithFields(logger.Fields{
		"failed":          failed,
		"jobs_sent":       stats.JobsSent,
		"results_sent":    stats.ResultsSent,
		"results_dropped": stats.ResultsDropped,
	}).Info("collection finished")
	return out
}

func (c *Collector) fetchOne(ctx context.Context, job fetch.Job) fetch.Result {
	src := c.sources[job.Index]
	snap := models.RawSnapshot{
		Source: src.Name(),
		Format: src.Format(),
		Symbol: src.Symbol(),
	}
	log := c.log.WithComponent("collector").WithFields(logger.Fields{"source": src.Name()})

	if err := ctx.Err(); err != nil {
		snap.FetchedAt = c.now().UTC()
		snap.Err = fmt.Errorf("%s: %w", src.Name(), err)
		return fetch.Result{Index: job.Index, Snapshot: snap}
	}

	if err := c.throttle.Allow(src.Name()); err != nil {
		log.WithError(err).Warn("fetch rejected by throttle")
		snap.FetchedAt = c.now().UTC()
		snap.Err = err
		return fetch.Result{Index: job.Index, Snapshot: snap, Throttled: true}
	}

	start := c.now()
	data, err := src.Fetch(ctx)
	snap.FetchedAt = c.now().UTC()
	snap.Latency = snap.FetchedAt.Sub(start.UTC())
	if err != nil {
		log.WithError(err).Warn("fetch failed")
		snap.Err = fmt.Errorf("fetch %s: %w", src.Name(), err)
		return fetch.Result{Index: job.Index, Snapshot: snap}
	}

	snap.Data = data
	logger.LogDataFlowEntry(log, src.Name(), "collector", len(data), "bytes")
	return fetch.Result{Index: job.Index, Snapshot: snap}
}
