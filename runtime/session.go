package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/section"
)

// State is the lifecycle state of a Session.
type State uint8

const (
	StateCreated State = iota
	StateRunning
	StateFinalized
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateFinalized:
		return "finalized"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Stats describes a finished session.
type Stats struct {
	Calls   map[host.Op]uint64
	Chars   int
	Leaked  int
	Elapsed time.Duration
}

// Session is one execution context: a sandbox instance, a resource table
// and an input stream, used for exactly one parse.
type Session struct {
	id     uuid.UUID
	plugin *Plugin
	host   *host.State
	log    *zap.Logger
	stats  Stats
	state  State
}

func newSession(p *Plugin, stream *host.Stream) *Session {
	id := uuid.New()
	log := p.rt.log.With(
		zap.Stringer("session", id),
		zap.String("plugin", p.name),
		zap.String("engine", string(p.kind)),
	)

	opts := []host.Option{
		host.WithLimit(p.rt.cfg.MaxSections),
		host.WithLogger(log),
	}
	if rec := p.rt.recorder; rec != nil {
		opts = append(opts, host.WithTracer(rec), host.WithObserver(rec))
	}

	return &Session{
		id:     id,
		plugin: p,
		host:   host.NewState(stream, opts...),
		log:    log,
		state:  StateCreated,
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Stats returns figures for a session that has run.
func (s *Session) Stats() Stats { return s.stats }

// Run instantiates the plugin, runs its entry point and takes the returned
// root out of the table. Any failure discards the whole table; no partial
// tree is returned.
func (s *Session) Run(ctx context.Context) (*section.Section, error) {
	if s.state != StateCreated {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Plugin(s.plugin.name).
			Detail("session %s already %s", s.id, s.state).
			Build()
	}

	ctx, cancel := s.plugin.rt.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	root, err := s.run(ctx)
	s.finish(start, err)
	if err != nil {
		return nil, withPlugin(err, s.plugin.name)
	}
	return root, nil
}

func (s *Session) run(ctx context.Context) (*section.Section, error) {
	inst, err := s.plugin.artifact.Instantiate(ctx, s.host)
	if err != nil {
		return nil, err
	}
	defer inst.Close(context.WithoutCancel(ctx))

	s.state = StateRunning
	h, err := inst.Parse(ctx)
	if err != nil {
		return nil, err
	}
	if fault := s.host.Fault(); fault != nil {
		return nil, fault
	}
	if serr := s.host.StreamErr(); serr != nil {
		return nil, errors.Wrap(errors.PhaseInput, errors.KindInvalidInput, serr, "input stream failed")
	}
	return s.host.Take(h)
}

func (s *Session) finish(start time.Time, err error) {
	leaked := s.host.Close()
	elapsed := time.Since(start)

	s.stats = Stats{
		Calls:   make(map[host.Op]uint64),
		Chars:   s.host.Consumed(),
		Leaked:  leaked,
		Elapsed: elapsed,
	}
	for _, op := range host.Ops() {
		if n := s.host.Calls(op); n > 0 {
			s.stats.Calls[op] = n
		}
	}

	if rec := s.plugin.rt.recorder; rec != nil {
		rec.SectionsDiscarded(leaked)
		rec.ParseDone(s.plugin.name, elapsed, err)
	}

	fields := []zap.Field{
		zap.Int("chars", s.stats.Chars),
		zap.Uint64("calls", s.totalCalls()),
		zap.Int("leaked", leaked),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		s.state = StateFaulted
		s.log.Debug("parse failed", append(fields, zap.Error(err))...)
		return
	}
	s.state = StateFinalized
	s.log.Debug("parse finished", fields...)
}

func (s *Session) totalCalls() uint64 {
	var n uint64
	for _, c := range s.stats.Calls {
		n += c
	}
	return n
}
