package plugin

import (
	"context"
	"sync"

	"github.com/ayusman/facepalm/internal/event"
	"github.com/ayusman/facepalm/internal/log"
)

// Dispatcher runs subscribed plugins for every event it is handed. Plugins
// run on their own goroutines so a slow plugin never delays the publisher.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher over the plugins known to manager.
func NewDispatcher(manager *Manager, executor *Executor) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Attach subscribes the dispatcher to bus and returns the unsubscribe func.
func (d *Dispatcher) Attach(bus *event.Bus) func() {
	return bus.Subscribe(d.Handle)
}

// Handle starts every plugin subscribed to e.Kind and returns immediately.
func (d *Dispatcher) Handle(e event.Event) {
	if d.ctx.Err() != nil {
		return
	}
	for _, p := range d.manager.Subscribers(e.Kind) {
		d.wg.Add(1)
		go d.run(p, e)
	}
}

func (d *Dispatcher) run(p *Plugin, e event.Event) {
	defer d.wg.Done()

	req := &Request{
		Action: ActionEvent,
		Event:  &e,
		Config: p.Manifest.Config,
	}

	resp, err := d.executor.Execute(d.ctx, p, req)
	if err != nil {
		log.Warn("plugin failed", "component", "plugin", "plugin", p.Manifest.Name, "event", e.Kind, "error", err)
		return
	}
	if !resp.Success {
		log.Warn("plugin reported error", "component", "plugin", "plugin", p.Manifest.Name, "event", e.Kind, "error", resp.Error)
		return
	}
	log.Debug("plugin ran", "component", "plugin", "plugin", p.Manifest.Name, "event", e.Kind)
}

// Wait blocks until running plugins have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops new dispatches, kills running plugins and waits for them.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}
