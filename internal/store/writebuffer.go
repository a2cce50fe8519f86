package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/domain"
)

// FlushFunc persists one accumulated batch.
type FlushFunc[T any] func(ctx context.Context, items []T) (Result, error)

// batch is one unit of work for the flush workers. spill is the Parquet
// file backing the batch on disk; it is removed once the flush succeeds,
// so batches survive a crash and can be replayed from the cache directory.
type batch[T any] struct {
	items []T
	spill string
}

// Buffer accumulates rows in memory and flushes them asynchronously once
// the batch grows past maxRows or the flush interval elapses. Each batch is
// spilled to a Parquet file before it is handed to a worker. The job queue
// is unbounded so cutting a batch never blocks the caller on database
// throughput; the spill file bounds the exposure of queued rows.
type Buffer[T any] struct {
	name     string
	dir      string
	maxRows  int
	interval time.Duration
	flush    FlushFunc[T]
	log      *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []T
	queue    []batch[T]
	inFlight int64 // rows enqueued but not yet resolved
	closed   bool

	wg       sync.WaitGroup
	stopTick chan struct{}

	lost    atomic.Int64 // rows whose flush permanently failed
	written atomic.Int64
}

// NewBuffer starts the flush workers and the interval ticker. dir holds the
// Parquet spill files; name distinguishes this buffer's files from others
// sharing the directory.
func NewBuffer[T any](name, dir string, cfg config.Buffer, flush FlushFunc[T], log *slog.Logger) (*Buffer[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spill dir: %w", err)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	b := &Buffer[T]{
		name:     name,
		dir:      dir,
		maxRows:  cfg.MaxRows,
		interval: time.Duration(cfg.FlushIntervalSec) * time.Second,
		flush:    flush,
		log:      log.With("buffer", name),
		stopTick: make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	go b.tick()
	return b, nil
}

// Add appends items, cutting a batch once the size threshold is reached.
func (b *Buffer[T]) Add(items ...T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, items...)
	for b.maxRows > 0 && len(b.pending) >= b.maxRows {
		cut := b.pending[:b.maxRows]
		b.pending = b.pending[b.maxRows:]
		if err := b.enqueue(cut); err != nil {
			return err
		}
	}
	return nil
}

// Flush cuts whatever is pending into a batch and blocks until every
// in-flight batch has resolved, so watermark reads that follow see
// persisted state. Returns ctx's error if the wait is cut short.
func (b *Buffer[T]) Flush(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.flushLocked(); err != nil {
		return err
	}
	for b.inFlight > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("flush %s: %w", b.name, err)
		}
		b.cond.Wait()
	}
	return nil
}

func (b *Buffer[T]) flushLocked() error {
	if len(b.pending) == 0 {
		return nil
	}
	cut := b.pending
	b.pending = nil
	return b.enqueue(cut)
}

// enqueue spills the batch to Parquet and queues it for a worker. The
// append never blocks. Caller holds b.mu.
func (b *Buffer[T]) enqueue(items []T) error {
	path := filepath.Join(b.dir, fmt.Sprintf("%s-%d.parquet", b.name, time.Now().UnixNano()))
	if err := parquet.WriteFile(path, items); err != nil {
		return fmt.Errorf("spill %s: %w", b.name, err)
	}
	b.inFlight += int64(len(items))
	b.queue = append(b.queue, batch[T]{items: items, spill: path})
	b.cond.Broadcast()
	return nil
}

func (b *Buffer[T]) tick() {
	if b.interval <= 0 {
		return
	}
	t := time.NewTicker(b.interval)
	defer t.Stop()
	for {
		select {
		case <-b.stopTick:
			return
		case <-t.C:
			b.mu.Lock()
			err := b.flushLocked()
			b.mu.Unlock()
			if err != nil {
				b.log.Error("interval flush failed", "error", err)
			}
		}
	}
}

func (b *Buffer[T]) worker() {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		job := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		n := int64(len(job.items))
		res, err := b.flush(context.Background(), job.items)
		if err != nil {
			// The spill file stays on disk for manual recovery.
			b.lost.Add(n)
			b.log.Error("flush failed, batch kept on disk",
				"rows", n, "spill", job.spill, "error", err)
		} else {
			b.written.Add(int64(res.Written))
			os.Remove(job.spill)
		}

		b.mu.Lock()
		b.inFlight -= n
		b.cond.Broadcast()
		b.mu.Unlock()
	}
}

// Drain flushes the remaining rows, stops the workers, and waits for all
// queued batches to resolve. It returns the number of rows that were lost
// to failed flushes or still unflushed when ctx expired.
func (b *Buffer[T]) Drain(ctx context.Context) (lost int64, err error) {
	close(b.stopTick)

	b.mu.Lock()
	if ferr := b.flushLocked(); ferr != nil {
		err = ferr
	}
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = fmt.Errorf("drain %s: %w", b.name, ctx.Err())
		}
	}

	b.mu.Lock()
	lost = b.lost.Load() + b.inFlight
	b.mu.Unlock()
	if lost > 0 {
		b.log.Warn("drain finished with lost rows", "lost", lost)
	}
	return lost, err
}

// Written reports the rows persisted so far.
func (b *Buffer[T]) Written() int64 { return b.written.Load() }

// ---------------------------------------------------------------------------
// BufferedStore
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ Writer = (*BufferedStore)(nil)

// Flusher is implemented by writers that hold rows back; gatherers flush
// before reading watermarks so persisted state is current. Flush returns
// only after held rows are durably written.
type Flusher interface {
	Flush(ctx context.Context) error
}

// BufferedStore buffers the high-volume series (daily bars, financials,
// indicators) and writes everything else straight through.
type BufferedStore struct {
	direct *TypedStore

	bars       *Buffer[domain.DailyBar]
	financials *Buffer[domain.FinancialSnapshot]
	indicators *Buffer[domain.TechnicalIndicator]
}

// NewBufferedStore wraps db with asynchronous buffers configured by cfg.
// cacheDir holds the Parquet spill files.
func NewBufferedStore(db DB, cacheDir string, cfg config.Buffer, log *slog.Logger) (*BufferedStore, error) {
	direct := NewTypedStore(db)
	bs := &BufferedStore{direct: direct}

	var err error
	bs.bars, err = NewBuffer("daily_bars", cacheDir, cfg, direct.WriteDailyBars, log)
	if err != nil {
		return nil, err
	}
	bs.financials, err = NewBuffer("financials", cacheDir, cfg, direct.WriteFinancials, log)
	if err != nil {
		return nil, err
	}
	bs.indicators, err = NewBuffer("indicators", cacheDir, cfg, direct.WriteIndicators, log)
	if err != nil {
		return nil, err
	}
	return bs, nil
}

// DB exposes the underlying backend for read queries.
func (bs *BufferedStore) DB() DB { return bs.direct.DB() }

// Flush pushes all buffered rows down and waits until they are persisted.
func (bs *BufferedStore) Flush(ctx context.Context) error {
	if err := bs.bars.Flush(ctx); err != nil {
		return err
	}
	if err := bs.financials.Flush(ctx); err != nil {
		return err
	}
	return bs.indicators.Flush(ctx)
}

// Drain flushes and waits for every buffer, returning the total lost rows.
func (bs *BufferedStore) Drain(ctx context.Context) (int64, error) {
	var total int64
	var firstErr error
	l, err := bs.bars.Drain(ctx)
	total += l
	if err != nil && firstErr == nil {
		firstErr = err
	}
	l, err = bs.financials.Drain(ctx)
	total += l
	if err != nil && firstErr == nil {
		firstErr = err
	}
	l, err = bs.indicators.Drain(ctx)
	total += l
	if err != nil && firstErr == nil {
		firstErr = err
	}
	return total, firstErr
}

func (bs *BufferedStore) WriteDailyBars(_ context.Context, bars []domain.DailyBar) (Result, error) {
	if err := bs.bars.Add(bars...); err != nil {
		return Result{}, err
	}
	return Result{Written: len(bars)}, nil
}

func (bs *BufferedStore) WriteFinancials(_ context.Context, recs []domain.FinancialSnapshot) (Result, error) {
	if err := bs.financials.Add(recs...); err != nil {
		return Result{}, err
	}
	return Result{Written: len(recs)}, nil
}

func (bs *BufferedStore) WriteIndicators(_ context.Context, recs []domain.TechnicalIndicator) (Result, error) {
	if err := bs.indicators.Add(recs...); err != nil {
		return Result{}, err
	}
	return Result{Written: len(recs)}, nil
}

func (bs *BufferedStore) WriteInstruments(ctx context.Context, recs []domain.Instrument) (Result, error) {
	return bs.direct.WriteInstruments(ctx, recs)
}

func (bs *BufferedStore) WriteMoneyFlows(ctx context.Context, recs []domain.MoneyFlow) (Result, error) {
	return bs.direct.WriteMoneyFlows(ctx, recs)
}

func (bs *BufferedStore) WriteConceptIndustry(ctx context.Context, recs []domain.ConceptIndustry) (Result, error) {
	return bs.direct.WriteConceptIndustry(ctx, recs)
}

func (bs *BufferedStore) WriteIndexConstituents(ctx context.Context, recs []domain.IndexConstituent) (Result, error) {
	return bs.direct.WriteIndexConstituents(ctx, recs)
}

func (bs *BufferedStore) WriteIndexBars(ctx context.Context, bars []domain.IndexDailyBar) (Result, error) {
	return bs.direct.WriteIndexBars(ctx, bars)
}
