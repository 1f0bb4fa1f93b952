package resource

import (
	"errors"
)

var (
	ErrInvalidHandle = errors.New("invalid resource handle")
	ErrTableFull     = errors.New("resource table full")
	ErrClosed        = errors.New("resource table closed")
)

// Table is an arena of values addressed by generation-tagged handles.
type Table[T any] struct {
	slots     []slot[T]
	free      []int
	observers []Observer
	live      int
	limit     int
	closed    bool
}

type slot[T any] struct {
	value T
	gen   uint16
	live  bool
}

type options struct {
	observers []Observer
	limit     int
}

// Option configures a Table.
type Option func(*options)

// WithLimit caps the number of simultaneously live values.
// Values <= 0 or above MaxSlots mean MaxSlots.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithObserver subscribes o at construction time.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		if o != nil {
			opts.observers = append(opts.observers, o)
		}
	}
}

// NewTable creates an empty table.
func NewTable[T any](opts ...Option) *Table[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit <= 0 || o.limit > MaxSlots {
		o.limit = MaxSlots
	}
	return &Table[T]{
		slots:     make([]slot[T], 0, 16),
		free:      make([]int, 0, 8),
		observers: o.observers,
		limit:     o.limit,
	}
}

// Insert adds a value and returns its handle.
func (t *Table[T]) Insert(value T) (Handle, error) {
	if t.closed {
		return 0, ErrClosed
	}
	if t.live >= t.limit {
		return 0, ErrTableFull
	}

	var idx int
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.slots) >= MaxSlots {
			return 0, ErrTableFull
		}
		t.slots = append(t.slots, slot[T]{})
		idx = len(t.slots) - 1
	}

	s := &t.slots[idx]
	s.value = value
	s.live = true
	t.live++

	h := makeHandle(idx, s.gen)
	t.notify(Event{Type: EventCreated, Handle: h, Value: value})
	return h, nil
}

// lookup returns the live slot addressed by h.
func (t *Table[T]) lookup(h Handle) (*slot[T], int, bool) {
	idx, ok := h.slot()
	if !ok || idx >= len(t.slots) {
		return nil, 0, false
	}
	s := &t.slots[idx]
	if !s.live || s.gen != h.generation() {
		return nil, 0, false
	}
	return s, idx, true
}

// Get retrieves a value by handle.
func (t *Table[T]) Get(h Handle) (T, bool) {
	s, _, ok := t.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Contains reports whether h is live.
func (t *Table[T]) Contains(h Handle) bool {
	_, _, ok := t.lookup(h)
	return ok
}

// Take removes the value and hands ownership to the caller.
// The handle is permanently invalid afterwards.
func (t *Table[T]) Take(h Handle) (T, bool) {
	value, ok := t.remove(h)
	if ok {
		t.notify(Event{Type: EventTaken, Handle: h, Value: value})
	}
	return value, ok
}

// Drop removes and destroys the value.
func (t *Table[T]) Drop(h Handle) bool {
	value, ok := t.remove(h)
	if !ok {
		return false
	}
	if d, ok := any(value).(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, Value: value})
	return true
}

func (t *Table[T]) remove(h Handle) (T, bool) {
	var zero T
	s, idx, ok := t.lookup(h)
	if !ok {
		return zero, false
	}

	value := s.value
	s.value = zero
	s.live = false
	t.live--

	if s.gen < maxGeneration {
		s.gen++
		t.free = append(t.free, idx)
	}
	return value, true
}

// Len returns the number of live values.
func (t *Table[T]) Len() int {
	return t.live
}

// Each iterates over live values in slot order until fn returns false.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		if !fn(makeHandle(i, s.gen), s.value) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer) {
	if o != nil {
		t.observers = append(t.observers, o)
	}
}

// Close drops every live value and rejects further inserts.
// It returns the number of values that were still live.
func (t *Table[T]) Close() int {
	if t.closed {
		return 0
	}
	t.closed = true

	leaked := 0
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		h := makeHandle(i, s.gen)
		value := s.value
		var zero T
		s.value = zero
		s.live = false
		leaked++
		if d, ok := any(value).(Dropper); ok {
			d.Drop()
		}
		t.notify(Event{Type: EventDropped, Handle: h, Value: value})
	}

	t.live = 0
	t.slots = nil
	t.free = nil
	return leaked
}

func (t *Table[T]) notify(e Event) {
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
