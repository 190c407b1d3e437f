package realtime

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/pkg/metrics"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// ErrDispatcherStopped is returned for work submitted after Stop.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

type job struct {
	ctx  context.Context
	run  func(ctx context.Context)
	done chan struct{}
}

// Dispatcher routes work to a fixed set of workers using consistent hashing
// on a key (the room), so jobs for one room run one at a time, in order.
type Dispatcher struct {
	workers []chan job
	log     zerolog.Logger

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers and
// starts them. If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan job, numWorkers),
		log:     log,
		stopped: make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
		d.wg.Add(1)
		go d.runWorker(i, d.workers[i])
	}
	return d
}

// Do runs fn on the worker that owns key and waits for it to finish.
// If ctx ends first Do returns ctx.Err(); a job already queued still runs
// with that ctx.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func(ctx context.Context)) error {
	idx := d.shardIndex(key)
	j := job{ctx: ctx, run: fn, done: make(chan struct{})}

	select {
	case <-d.stopped:
		return ErrDispatcherStopped
	default:
	}

	select {
	case d.workers[idx] <- j:
		metrics.MessageQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrDispatcherStopped
	}

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrDispatcherStopped
	}
}

// Stop ends all workers after the job each is running. Queued jobs are
// dropped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopped) })
	d.wg.Wait()
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan job) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-d.stopped:
			return
		case j := <-ch:
			metrics.MessageQueueDepth.WithLabelValues(label).Dec()
			d.run(id, j)
		}
	}
}

func (d *Dispatcher) run(id int, j job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Int("worker_id", id).Msg("room job panicked")
		}
	}()
	j.run(j.ctx)
}
