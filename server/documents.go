package server

import (
	"errors"
	"fmt"
	"sync"
)

var errStopped = errors.New("document store stopped")

// Documents holds the latest analysis of every open file. Each URI gets
// its own goroutine, so edits to one file apply in arrival order while
// other files are analyzed independently.
type Documents struct {
	mu      sync.Mutex
	queues  map[string]*docQueue
	stopped bool
}

// docQueue owns one document. doc is only touched by the queue goroutine.
type docQueue struct {
	jobs chan func()
	quit chan struct{}
	doc  *Document
}

func NewDocuments() *Documents {
	return &Documents{queues: make(map[string]*docQueue)}
}

func (q *docQueue) run() {
	for {
		select {
		case job := <-q.jobs:
			job()
		case <-q.quit:
			return
		}
	}
}

// Update analyzes text as the new content of uri, opening it if needed.
func (ds *Documents) Update(uri, text string) (*Document, error) {
	var d *Document
	err := ds.submit(uri, true, func(q *docQueue) {
		d = Analyze(uri, text)
		q.doc = d
	})
	return d, err
}

// Read runs fn on the current analysis of uri after every pending update.
// fn is not called when uri is not open. A panic in fn comes back as the
// returned error.
func (ds *Documents) Read(uri string, fn func(*Document)) error {
	return ds.submit(uri, false, func(q *docQueue) {
		fn(q.doc)
	})
}

// Close forgets uri. Updates still queued for it are dropped.
func (ds *Documents) Close(uri string) {
	ds.mu.Lock()
	q := ds.queues[uri]
	delete(ds.queues, uri)
	ds.mu.Unlock()
	if q != nil {
		close(q.quit)
	}
}

// Stop closes every document. Later calls fail.
func (ds *Documents) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.stopped {
		return
	}
	ds.stopped = true
	for _, q := range ds.queues {
		close(q.quit)
	}
	ds.queues = nil
}

func (ds *Documents) submit(uri string, open bool, job func(*docQueue)) error {
	ds.mu.Lock()
	if ds.stopped {
		ds.mu.Unlock()
		return errStopped
	}
	q := ds.queues[uri]
	if q == nil {
		if !open {
			ds.mu.Unlock()
			return nil
		}
		q = &docQueue{jobs: make(chan func()), quit: make(chan struct{})}
		ds.queues[uri] = q
		go q.run()
	}
	ds.mu.Unlock()

	done := make(chan error, 1)
	wrapped := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%v", r)
			}
		}()
		job(q)
		done <- nil
	}

	select {
	case q.jobs <- wrapped:
	case <-q.quit:
		return fmt.Errorf("%s: %w", uri, errStopped)
	}
	select {
	case err := <-done:
		return err
	case <-q.quit:
		return fmt.Errorf("%s: %w", uri, errStopped)
	}
}
