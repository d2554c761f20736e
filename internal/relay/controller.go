package relay

import (
	"context"
	"errors"
	"fmt"
	"orderexport/internal/assert"
	"orderexport/internal/export"
	"orderexport/internal/telemetry"
	"sync"
	"time"
)

const (
	report_controller_start = "controller.start-export"
	report_controller_stop  = "controller.stop-export"
	report_controller_save  = "controller.save"
)

// Factory builds the orchestrator of a new run, wiring onProgress into its config.
type Factory func(onProgress func(export.Progress)) *export.Orchestrator

// Saved is the last CSV the controller produced.
type Saved struct {
	RunId    string
	Filename string
	Path     string
	CSV      []byte
	At       time.Time
}

// Status is a snapshot of the controller.
type Status struct {
	Running     bool      `json:"running"`
	RunId       string    `json:"runId,omitempty"`
	State       string    `json:"state"`
	Subscribers int       `json:"subscribers"`
	Last        *Response `json:"last,omitempty"`
}

// Controller accepts control messages and owns at most one running orchestrator.
type Controller struct {
	factory Factory
	broker  *Broker
	saver   Saver
	tel     telemetry.API

	mu       sync.Mutex
	current  *export.Orchestrator
	previous *export.Orchestrator
	last     *Response
	saved    *Saved
}

func NewController(factory Factory, broker *Broker, saver Saver, tel telemetry.API) *Controller {
	assert.NotNil(factory)
	assert.NotNil(broker)
	assert.NotNil(saver)
	assert.NotNil(tel)

	return &Controller{
		factory: factory,
		broker:  broker,
		saver:   saver,
		tel:     telemetry.NewScopedAPI("relay", tel),
	}
}

// Handle answers a control message. StartExport blocks until the run finishes, every
// other message is answered immediately.
func (c *Controller) Handle(ctx context.Context, msg Message) Response {
	switch msg.Type {
	case StartExport:
		opts := export.Options{OrderTypeFilter: export.FilterAll}
		if msg.Options != nil {
			opts = *msg.Options
		}
		return c.start(ctx, opts)
	case StopExport:
		c.stop()
		return Response{Success: true}
	default:
		return failure(fmt.Errorf("unknown message type %q", msg.Type))
	}
}

func (c *Controller) publish(p export.Progress) {
	c.broker.Publish(progressEvent(p))
}

func (c *Controller) start(ctx context.Context, opts export.Options) Response {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return failure(export.ErrAlreadyRunning)
	}
	orch := c.factory(c.publish)
	c.current = orch
	c.mu.Unlock()

	c.tel.ReportDebug(report_controller_start, orch.RunId, opts)
	result, err := orch.Run(ctx, opts)

	var res Response
	if err == nil {
		res = Response{
			Success:    true,
			OrderCount: result.OrderCount,
			ItemCount:  result.ItemCount,
			Filename:   result.Filename,
		}
		path, saveErr := c.saver.Save(result.Filename, []byte(result.CSV))
		if saveErr != nil {
			c.tel.ReportBroken(report_controller_save, saveErr, result.Filename)
			res = failure(fmt.Errorf("save csv: %w", saveErr))
		} else {
			c.mu.Lock()
			c.saved = &Saved{
				RunId:    result.RunId,
				Filename: result.Filename,
				Path:     path,
				CSV:      []byte(result.CSV),
				At:       time.Now(),
			}
			c.mu.Unlock()
		}
	} else {
		if !errors.Is(err, export.ErrCancelled) {
			c.tel.ReportWarning(report_controller_start, err, orch.RunId)
		}
		res = failure(err)
	}

	c.mu.Lock()
	c.current = nil
	c.previous = orch
	c.last = &res
	c.mu.Unlock()
	return res
}

func (c *Controller) stop() {
	c.mu.Lock()
	orch := c.current
	c.mu.Unlock()
	if orch == nil {
		c.tel.ReportDebug(report_controller_stop, "nothing is running")
		return
	}
	c.tel.ReportDebug(report_controller_stop, orch.RunId)
	orch.Stop()
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:       export.StateIdle.String(),
		Subscribers: c.broker.Subscribers(),
		Last:        c.last,
	}
	switch {
	case c.current != nil:
		st.Running = true
		st.RunId = c.current.RunId
		st.State = c.current.State().String()
	case c.previous != nil:
		st.RunId = c.previous.RunId
		st.State = c.previous.State().String()
	}
	return st
}

// Latest returns the last saved CSV, nil before the first successful run.
func (c *Controller) Latest() *Saved {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved
}
