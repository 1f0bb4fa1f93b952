package host

import (
	"go.uber.org/zap"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/resource"
	"github.com/wippyai/dyparser/section"
)

// Callbacks is the set of operations a sandbox may invoke during a parse.
// Engines adapt their calling convention onto it.
type Callbacks interface {
	NextChar() (rune, bool)
	NewSection() (resource.Handle, error)
	AddField(h resource.Handle, key, value string) error
	AddSection(parent resource.Handle, key string, child resource.Handle) error
	Release(h resource.Handle) error

	// Fault returns the first protocol violation seen, if any.
	Fault() error
}

// Tracer observes every host callback and its outcome.
type Tracer interface {
	HostCall(op Op, err error)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(op Op, err error)

func (f TracerFunc) HostCall(op Op, err error) { f(op, err) }

// State is the host side of one execution context: a section table and the
// input stream bound to it. It is not safe for concurrent use.
type State struct {
	table  *resource.Table[*section.Section]
	stream *Stream
	tracer Tracer
	fault  error
	log    *zap.Logger
	limit  int
	calls  [opCount]uint64
}

var _ Callbacks = (*State)(nil)

type options struct {
	tracer    Tracer
	log       *zap.Logger
	observers []resource.Observer
	limit     int
}

// Option configures a State.
type Option func(*options)

// WithTracer reports every callback to t.
func WithTracer(t Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithLimit caps the number of simultaneously live sections.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithObserver subscribes obs to section table events.
func WithObserver(obs resource.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger overrides the package logger for this state.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// NewState creates a state reading from stream.
func NewState(stream *Stream, opts ...Option) *State {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit <= 0 || o.limit > resource.MaxSlots {
		o.limit = resource.MaxSlots
	}
	if o.log == nil {
		o.log = Logger()
	}

	topts := []resource.Option{resource.WithLimit(o.limit)}
	for _, obs := range o.observers {
		topts = append(topts, resource.WithObserver(obs))
	}
	return &State{
		table:  resource.NewTable[*section.Section](topts...),
		stream: stream,
		tracer: o.tracer,
		log:    o.log,
		limit:  o.limit,
	}
}

// NextChar consumes the next input character.
func (s *State) NextChar() (rune, bool) {
	c, ok := s.stream.Next()
	s.done(OpNextChar, nil)
	return c, ok
}

// NewSection allocates an empty section and returns its handle.
func (s *State) NewSection() (resource.Handle, error) {
	h, err := s.table.Insert(section.New[string]())
	if err != nil {
		return 0, s.done(OpNewSection, errors.TableFull(s.limit, err))
	}
	s.done(OpNewSection, nil)
	return h, nil
}

// AddField appends value under key in the section addressed by h.
func (s *State) AddField(h resource.Handle, key, value string) error {
	node, ok := s.table.Get(h)
	if !ok {
		return s.done(OpAddField, errors.HandleInvalid(OpAddField.String(), uint32(h)))
	}
	node.AddField(key, value)
	return s.done(OpAddField, nil)
}

// AddSection moves child out of the table and appends it under key in parent.
// A failed call leaves the table unchanged.
func (s *State) AddSection(parent resource.Handle, key string, child resource.Handle) error {
	p, ok := s.table.Get(parent)
	if !ok {
		return s.done(OpAddSection, errors.HandleInvalid(OpAddSection.String(), uint32(parent)))
	}
	if parent == child {
		return s.done(OpAddSection, errors.SelfAttach(uint32(child)))
	}
	c, ok := s.table.Take(child)
	if !ok {
		return s.done(OpAddSection, errors.HandleInvalid(OpAddSection.String(), uint32(child)))
	}
	p.AddSection(key, c)
	return s.done(OpAddSection, nil)
}

// Release destroys the section addressed by h together with its subtree.
func (s *State) Release(h resource.Handle) error {
	if !s.table.Drop(h) {
		return s.done(OpRelease, errors.HandleInvalid(OpRelease.String(), uint32(h)))
	}
	return s.done(OpRelease, nil)
}

// Fault returns the first protocol violation recorded.
func (s *State) Fault() error {
	return s.fault
}

// Take removes the section addressed by root and returns ownership of it.
func (s *State) Take(root resource.Handle) (*section.Section, error) {
	node, ok := s.table.Take(root)
	if !ok {
		return nil, errors.New(errors.PhaseFinalize, errors.KindHandleInvalid).
			Op("take").
			Handle(uint32(root)).
			Detail("returned handle is not live in the resource table").
			Build()
	}
	return node, nil
}

// Close discards the table. It returns how many sections the plugin left
// neither attached nor released.
func (s *State) Close() int {
	leaked := s.table.Close()
	if leaked > 0 {
		s.log.Debug("discarding unattached sections", zap.Int("count", leaked))
	}
	return leaked
}

// Live returns the number of sections currently in the table.
func (s *State) Live() int {
	return s.table.Len()
}

// Calls returns how many times op was invoked.
func (s *State) Calls(op Op) uint64 {
	if op >= opCount {
		return 0
	}
	return s.calls[op]
}

// Consumed returns how many input characters the plugin has read.
func (s *State) Consumed() int {
	return s.stream.Consumed()
}

// StreamErr returns the read error that cut the input short, if any.
func (s *State) StreamErr() error {
	return s.stream.Err()
}

func (s *State) done(op Op, err error) error {
	s.calls[op]++
	if s.tracer != nil {
		s.tracer.HostCall(op, err)
	}
	if err != nil {
		if s.fault == nil {
			s.fault = err
		}
		s.log.Debug("host call rejected", zap.Stringer("op", op), zap.Error(err))
	}
	return err
}
