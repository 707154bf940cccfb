package plugin

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Notice is one event delivered to subscribed plugins.
type Notice struct {
	Event      Event
	User       string
	Confidence float64
	Params     json.RawMessage
}

// Outcome is the result of delivering a notice to one plugin.
type Outcome struct {
	Plugin   string
	Response *Response
	Err      error
}

// Dispatcher delivers events to every plugin subscribed to them. Plugin
// failures are logged and reported, never returned as errors.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	log      *zap.Logger
}

// NewDispatcher creates a dispatcher over discovered plugins.
func NewDispatcher(manager *Manager, executor *Executor, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{manager: manager, executor: executor, log: log}
}

// Fire runs each subscriber in name order.
func (d *Dispatcher) Fire(ctx context.Context, n Notice) []Outcome {
	if d == nil || d.manager == nil {
		return nil
	}

	var outcomes []Outcome
	for _, p := range d.manager.Subscribers(n.Event) {
		req := &Request{
			Action:     string(n.Event),
			User:       n.User,
			Confidence: n.Confidence,
			Config:     p.Manifest.Config,
			Params:     n.Params,
		}

		resp, err := d.executor.Execute(ctx, p, req)
		switch {
		case err != nil:
			d.log.Warn("plugin failed", zap.String("plugin", p.Manifest.Name), zap.String("event", string(n.Event)), zap.Error(err))
		case !resp.Success:
			d.log.Warn("plugin reported failure", zap.String("plugin", p.Manifest.Name), zap.String("event", string(n.Event)), zap.String("error", resp.Error))
		default:
			d.log.Debug("plugin ran", zap.String("plugin", p.Manifest.Name), zap.String("event", string(n.Event)))
		}
		outcomes = append(outcomes, Outcome{Plugin: p.Manifest.Name, Response: resp, Err: err})
	}
	return outcomes
}
