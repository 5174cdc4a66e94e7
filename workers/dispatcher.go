package workers

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/zsmartex/carbonex/config"
)

var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Worker runs jobs one at a time in submission order.
type Worker struct {
	Key  string
	jobs chan func()
	done chan struct{}
}

func NewWorker(key string, buffer int) *Worker {
	w := &Worker{
		Key:  key,
		jobs: make(chan func(), buffer),
		done: make(chan struct{}),
	}

	go w.run()

	return w
}

func (w *Worker) run() {
	defer close(w.done)

	for job := range w.jobs {
		w.process(job)
	}
}

func (w *Worker) process(job func()) {
	defer func() {
		if r := recover(); r != nil {
			config.Logger.Errorf("[carbonex.worker] job on %s panicked: %v", w.Key, r)
		}
	}()

	job()
}

// Dispatcher owns one Worker per order book key, started on first use.
// Jobs for one key never run concurrently; different keys run in parallel.
type Dispatcher struct {
	mutex   sync.RWMutex
	workers map[string]*Worker
	buffer  int
	closed  bool
	// sending counts Dispatch calls between the closed check and the send.
	sending sync.WaitGroup
}

func NewDispatcher(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}

	return &Dispatcher{
		workers: make(map[string]*Worker),
		buffer:  buffer,
	}
}

// Dispatch queues fn on the worker of key. The send happens outside the
// dispatcher lock, so a full queue only blocks callers of that key.
func (d *Dispatcher) Dispatch(key string, fn func()) error {
	worker, err := d.worker(key)
	if err != nil {
		return err
	}
	defer d.sending.Done()

	worker.jobs <- fn
	return nil
}

// worker returns the worker of key and registers a pending send that the
// caller must finish with d.sending.Done.
func (d *Dispatcher) worker(key string) (*Worker, error) {
	d.mutex.RLock()
	if d.closed {
		d.mutex.RUnlock()
		return nil, ErrDispatcherClosed
	}

	if worker, ok := d.workers[key]; ok {
		d.sending.Add(1)
		d.mutex.RUnlock()
		return worker, nil
	}
	d.mutex.RUnlock()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return nil, ErrDispatcherClosed
	}

	worker, ok := d.workers[key]
	if !ok {
		worker = NewWorker(key, d.buffer)
		d.workers[key] = worker
		config.Logger.Debugf("[carbonex.worker] started worker for %s", key)
	}
	d.sending.Add(1)

	return worker, nil
}

// Do runs fn on the worker of key and waits for its result. A cancelled ctx
// stops the wait, not the job.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func() error) error {
	result := make(chan error, 1)

	err := d.Dispatch(key, func() {
		result <- fn()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Keys() []string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	keys := make([]string, 0, len(d.workers))
	for key := range d.workers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

// Close stops accepting jobs and waits for every queued job to finish.
func (d *Dispatcher) Close() {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return
	}
	d.closed = true

	workers := make([]*Worker, 0, len(d.workers))
	for _, worker := range d.workers {
		workers = append(workers, worker)
	}
	d.mutex.Unlock()

	d.sending.Wait()

	for _, worker := range workers {
		close(worker.jobs)
	}

	for _, worker := range workers {
		<-worker.done
	}
}
