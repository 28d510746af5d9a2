package plugin

import (
	"context"
	"log"
	"sync"
)

// Result is the outcome of one plugin run.
type Result struct {
	Plugin   string
	Response *Response
	Err      error
}

// Dispatcher delivers events to every subscribed plugin.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(manager *Manager, executor *Executor) *Dispatcher {
	return &Dispatcher{manager: manager, executor: executor}
}

// Dispatch runs every plugin subscribed to req.Event in turn and returns
// their results. Failures are logged and do not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) []Result {
	subs := d.manager.Subscribers(req.Event)
	results := make([]Result, 0, len(subs))

	for _, p := range subs {
		r := req
		resp, err := d.executor.Execute(ctx, p, &r)
		switch {
		case err != nil:
			log.Printf("Plugin %s failed on %s: %v", p.Manifest.Name, req.Event, err)
		case !resp.Success:
			log.Printf("Plugin %s reported failure on %s: %s", p.Manifest.Name, req.Event, resp.Error)
		}
		results = append(results, Result{Plugin: p.Manifest.Name, Response: resp, Err: err})
	}

	return results
}

// DispatchAsync runs Dispatch in the background so frame processing never
// waits on a plugin.
func (d *Dispatcher) DispatchAsync(req Request) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Dispatch(context.Background(), req)
	}()
}

// Wait blocks until background dispatches finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
