package fetch

import (
	"context"
	"sync"

	"cryptoquote/internal/metrics"
	"cryptoquote/logger"
	"cryptoquote/models"
)

// Job asks a worker to fetch the source at Index.
type Job struct {
	Index  int
	Source string
}

// Result pairs a snapshot with the job that produced it.
type Result struct {
	Index     int
	Snapshot  models.RawSnapshot
	Throttled bool
}

type ChannelStats struct {
	JobsSent       int64
	ResultsSent    int64
	JobsDropped    int64
	ResultsDropped int64
}

// Channels carries fetch jobs to workers and snapshots back to the collector.
// Both are buffered to the number of sources so a send blocks only when the
// context is cancelled.
type Channels struct {
	Jobs    chan Job
	Results chan Result

	stats      ChannelStats
	statsMutex sync.RWMutex
	closeJobs  sync.Once
	log        *logger.Log
}

func NewChannels(size int) *Channels {
	if size < 1 {
		size = 1
	}
	log := logger.GetLogger()
	c := &Channels{
		Jobs:    make(chan Job, size),
		Results: make(chan Result, size),
		log:     log,
	}
	log.WithComponent("fetch_channels").WithFields(logger.Fields{"buffer_size": size}).Debug("fetch channels initialized")
	return c
}

// CloseJobs signals workers that no more jobs will arrive.
func (c *Channels) CloseJobs() {
	c.closeJobs.Do(func() { close(c.Jobs) })
}

// CloseResults is called once every worker has returned.
func (c *Channels) CloseResults() {
	close(c.Results)
}

func (c *Channels) SendJob(ctx context.Context, job Job) bool {
	select {
	case c.Jobs <- job:
		c.statsMutex.Lock()
		c.stats.JobsSent++
		c.statsMutex.Unlock()
		return true
	case <-ctx.Done():
		c.statsMutex.Lock()
		c.stats.JobsDropped++
		c.statsMutex.Unlock()
		metrics.EmitDropMetric(c.log, metrics.DropMetricJob, job.Source)
		return false
	}
}

// SendResult hands res to the collector. A completed fetch is kept whenever
// the buffer has room, even after ctx is cancelled.
func (c *Channels) SendResult(ctx context.Context, res Result) bool {
	select {
	case c.Results <- res:
		c.resultSent()
		return true
	default:
	}

	select {
	case c.Results <- res:
		c.resultSent()
		return true
	case <-ctx.Done():
		c.statsMutex.Lock()
		c.stats.ResultsDropped++
		c.statsMutex.Unlock()
		metrics.EmitDropMetric(c.log, metrics.DropMetricResult, res.Snapshot.Source)
		return false
	}
}

func (c *Channels) resultSent() {
	c.statsMutex.Lock()
	c.stats.ResultsSent++
	c.statsMutex.Unlock()
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
