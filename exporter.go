package mona

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultQueueSize     = 1024
	defaultBatchSize     = 128
	defaultFlushInterval = 5 * time.Second
	defaultWorkers       = 4
)

// ExporterConfig tunes the background exporter. The zero value gets sane
// defaults.
type ExporterConfig struct {
	// QueueSize bounds the number of messages waiting to be batched.
	// Enqueue drops messages once the queue is full.
	QueueSize int

	// BatchSize is the maximum number of messages per export request.
	BatchSize int

	// FlushInterval bounds how long a partial batch may wait before being
	// sent anyway.
	FlushInterval time.Duration

	// Workers is the number of concurrent export requests.
	Workers int
}

func (c *ExporterConfig) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
}

// Exporter sends messages in the background so callers never block on
// network I/O. Messages are collected into batches by size and time, and a
// worker pool ships the batches concurrently. Failed batches are logged and
// dropped; use Client.ExportBatch directly when delivery must be confirmed.
type Exporter struct {
	client *Client
	cfg    ExporterConfig

	queue   chan SingleMessage
	batches chan []SingleMessage

	group     *errgroup.Group
	closeOnce sync.Once
	dropped   atomic.Int64
}

// NewExporter starts the exporter's collector and worker pool. Call Close to
// flush pending messages and stop.
func NewExporter(client *Client, cfg ExporterConfig) *Exporter {
	cfg.applyDefaults()
	e := &Exporter{
		client:  client,
		cfg:     cfg,
		queue:   make(chan SingleMessage, cfg.QueueSize),
		batches: make(chan []SingleMessage, cfg.Workers),
		group:   &errgroup.Group{},
	}

	e.group.Go(e.collect)
	for range cfg.Workers {
		e.group.Go(e.work)
	}
	return e
}

// Enqueue queues a message for background export. It never blocks: when the
// queue is full the message is dropped and Enqueue returns false.
func (e *Exporter) Enqueue(message SingleMessage) bool {
	select {
	case e.queue <- message:
		return true
	default:
		e.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of messages dropped because the queue was full.
func (e *Exporter) Dropped() int64 {
	return e.dropped.Load()
}

// Close flushes queued messages and waits for in-flight batches to finish.
// Enqueue must not be called after Close.
func (e *Exporter) Close() error {
	e.closeOnce.Do(func() { close(e.queue) })
	return e.group.Wait()
}

// collect drains the queue into batches, flushing on size or on the flush
// interval, whichever comes first.
func (e *Exporter) collect() error {
	defer close(e.batches)

	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]SingleMessage, 0, e.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		e.batches <- batch
		batch = make([]SingleMessage, 0, e.cfg.BatchSize)
	}

	for {
		select {
		case message, ok := <-e.queue:
			if !ok {
				flush()
				return nil
			}
			batch = append(batch, message)
			if len(batch) >= e.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// work ships batches until the collector closes the channel. A failed batch
// is logged and dropped, it never stops the pool.
func (e *Exporter) work() error {
	for batch := range e.batches {
		result, err := e.client.ExportBatch(context.Background(), batch)
		switch {
		case err != nil:
			e.client.logger.Error("background export failed",
				"size", len(batch), "error", err)
		case result.Failed > 0:
			e.client.logger.Warn("background export partially rejected",
				"total", result.Total, "failed", result.Failed)
		}
	}
	return nil
}
