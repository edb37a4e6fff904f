package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"cam-streamd/pkg/calibration"
	"cam-streamd/pkg/device"
	"cam-streamd/pkg/publish"
)

// requestState is the per-slot lifecycle. A slot cycles
// Idle -> Queued -> Completed|Cancelled -> Idle -> Queued ... for as
// long as the device runs.
type requestState int

const (
	stateIdle requestState = iota
	stateQueued
	stateCompleted
	stateCancelled
)

func (s requestState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateQueued:
		return "queued"
	case stateCompleted:
		return "completed"
	case stateCancelled:
		return "cancelled"
	}
	return "unknown"
}

type requestEvent int

const (
	evSubmit requestEvent = iota
	evComplete
	evCancel
	evReuse
)

// nextState is the pure transition function for the request cycle.
func nextState(s requestState, ev requestEvent) (requestState, error) {
	switch {
	case ev == evSubmit && s == stateIdle:
		return stateQueued, nil
	case ev == evComplete && s == stateQueued:
		return stateCompleted, nil
	case ev == evCancel && s == stateQueued:
		return stateCancelled, nil
	case ev == evReuse && (s == stateCompleted || s == stateCancelled):
		return stateIdle, nil
	}
	return s, fmt.Errorf("invalid request transition: %s event in state %s", eventName(ev), s)
}

func eventName(ev requestEvent) string {
	switch ev {
	case evSubmit:
		return "submit"
	case evComplete:
		return "complete"
	case evCancel:
		return "cancel"
	case evReuse:
		return "reuse"
	}
	return "unknown"
}

type slot struct {
	req   device.Request
	buf   device.FrameBuffer
	state requestState
}

func (s *slot) apply(ev requestEvent) error {
	next, err := nextState(s.state, ev)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Pool owns the fixed set of in-flight requests, one per allocated
// buffer, and drives the submit -> complete -> reuse -> resubmit cycle.
// OnComplete runs under the shutdown lock shared with the lifecycle
// controller, so a completion either finishes before teardown stops the
// device or teardown waits for it.
type Pool struct {
	cam      device.Camera
	registry *Registry
	asm      *Assembler
	sink     publish.Sink
	calib    *calibration.Record
	staged   func() map[string]device.Value
	logger   *zap.SugaredLogger

	// mu is the shutdown lock, owned by the lifecycle controller.
	mu *sync.Mutex
	// publishMu serializes calls into the sink, which need not be safe
	// for concurrent invocation.
	publishMu sync.Mutex

	slots []*slot
	byReq map[device.Request]*slot

	published atomic.Uint64
	dropped   atomic.Uint64
	cancelled atomic.Uint64
}

func NewPool(cam device.Camera, registry *Registry, asm *Assembler, sink publish.Sink,
	calib *calibration.Record, staged func() map[string]device.Value,
	shutdownLock *sync.Mutex, logger *zap.SugaredLogger) *Pool {
	return &Pool{
		cam:      cam,
		registry: registry,
		asm:      asm,
		sink:     sink,
		calib:    calib,
		staged:   staged,
		mu:       shutdownLock,
		logger:   logger,
		byReq:    make(map[device.Request]*slot),
	}
}

// Build creates one request per buffer, each bound to its buffer for
// the rest of the run.
func (p *Pool) Build(buffers []device.FrameBuffer) error {
	for _, buf := range buffers {
		req, err := p.cam.NewRequest()
		if err != nil {
			return fmt.Errorf("%w: create request: %v", ErrDeviceAcquisition, err)
		}
		if err := req.AddBuffer(buf); err != nil {
			return fmt.Errorf("%w: bind buffer to request: %v", ErrDeviceAcquisition, err)
		}
		s := &slot{req: req, buf: buf, state: stateIdle}
		p.slots = append(p.slots, s)
		p.byReq[req] = s
	}
	return nil
}

// Size is the number of pool slots.
func (p *Pool) Size() int { return len(p.slots) }

// SubmitAll queues every request with the current staged control
// snapshot. Called once after the device started.
func (p *Pool) SubmitAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.slots {
		if err := p.submit(s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) submit(s *slot) error {
	if err := s.apply(evSubmit); err != nil {
		return err
	}
	s.req.SetControls(p.staged())
	if err := p.cam.Queue(s.req); err != nil {
		return fmt.Errorf("queue %s: %w", s.req, err)
	}
	return nil
}

// OnComplete is the device completion callback. On success the frame is
// assembled and published; a cancelled request is only logged. Either
// way the request returns to Idle and is queued again with the then
// current staged controls, so the cycle never terminates on its own.
func (p *Pool) OnComplete(req device.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.byReq[req]
	if !ok {
		p.logger.Errorf("completion for unknown request %s", req)
		return
	}

	switch req.Status() {
	case device.RequestComplete:
		if err := s.apply(evComplete); err != nil {
			p.logger.Error(err)
		}
		if n := len(req.Buffers()); n != 1 {
			p.logger.Panicf("request %s completed with %d buffers, want 1", req, n)
		}
		p.deliver(s)
	case device.RequestCancelled:
		if err := s.apply(evCancel); err != nil {
			p.logger.Error(err)
		}
		p.cancelled.Add(1)
		p.logger.Warnf("request %s cancelled", req)
	}

	if err := s.apply(evReuse); err != nil {
		p.logger.Error(err)
		return
	}
	// Resubmission after the device stopped fails; those completions
	// belong to the teardown drain and are only logged.
	if err := p.submit(s); err != nil {
		p.logger.Warnf("requeue after completion: %s", err)
	}
}

func (p *Pool) deliver(s *slot) {
	mapped, ok := p.registry.Lookup(s.buf)
	if !ok {
		p.logger.Panicf("completed buffer of %s has no mapping", s.req)
	}

	frame, err := p.asm.Assemble(mapped, s.buf.Metadata())
	if err != nil {
		p.dropped.Add(1)
		p.logger.Errorf("dropping frame: %s", err)
		return
	}
	frame.Calibration = p.calib

	p.publishMu.Lock()
	err = p.sink.Publish(frame)
	p.publishMu.Unlock()
	if err != nil {
		p.dropped.Add(1)
		p.logger.Errorf("publish: %s", err)
		return
	}
	p.published.Add(1)
}

// Stats are cumulative frame counters.
type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Cancelled uint64 `json:"cancelled"`
}

func (p *Pool) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Cancelled: p.cancelled.Load(),
	}
}
