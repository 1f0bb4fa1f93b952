package host

import (
	"testing"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/resource"
	"github.com/wippyai/dyparser/section"
)

func newState(t *testing.T, opts ...Option) *State {
	t.Helper()
	s := NewState(NewStringStream(""), opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustSection(t *testing.T, s *State) resource.Handle {
	t.Helper()
	h, err := s.NewSection()
	if err != nil {
		t.Fatalf("NewSection: %v", err)
	}
	return h
}

func TestState_Scenario(t *testing.T) {
	s := newState(t)

	h0 := mustSection(t, s)
	if err := s.AddField(h0, "a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddField(h0, "a", "2"); err != nil {
		t.Fatal(err)
	}
	h1 := mustSection(t, s)
	if err := s.AddField(h1, "x", "3"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSection(h0, "b", h1); err != nil {
		t.Fatal(err)
	}

	root, err := s.Take(h0)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if s.Live() != 0 {
		t.Fatalf("table still holds %d sections", s.Live())
	}

	want := section.New[string]()
	want.AddField("a", "1")
	want.AddField("a", "2")
	child := section.New[string]()
	child.AddField("x", "3")
	want.AddSection("b", child)

	if !section.Equal(root, want) {
		t.Fatalf("unexpected tree: %v / %v", root.Fields(), root.Subsections())
	}
	if s.Fault() != nil {
		t.Fatalf("unexpected fault %v", s.Fault())
	}
}

func TestState_AttachTransfersOwnership(t *testing.T) {
	s := newState(t)
	p := mustSection(t, s)
	c := mustSection(t, s)

	if err := s.AddSection(p, "child", c); err != nil {
		t.Fatal(err)
	}

	other := mustSection(t, s)
	tests := []struct {
		name string
		call func() error
	}{
		{"add-field", func() error { return s.AddField(c, "k", "v") }},
		{"add-section as parent", func() error { return s.AddSection(c, "k", other) }},
		{"add-section as child", func() error { return s.AddSection(other, "k", c) }},
		{"release", func() error { return s.Release(c) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, errors.ErrHandleInvalid) {
				t.Fatalf("expected HandleInvalid, got %v", err)
			}
		})
	}

	// the other section was not consumed by the failed attach
	if err := s.AddField(other, "k", "v"); err != nil {
		t.Fatalf("other section should remain live: %v", err)
	}
}

func TestState_SelfAttachLeavesTableUnchanged(t *testing.T) {
	s := newState(t)
	h := mustSection(t, s)
	if err := s.AddField(h, "k", "v"); err != nil {
		t.Fatal(err)
	}

	before := s.Live()
	err := s.AddSection(h, "self", h)
	if !errors.Is(err, errors.ErrSelfAttach) {
		t.Fatalf("expected SelfAttach, got %v", err)
	}
	if s.Live() != before {
		t.Fatalf("Live changed from %d to %d", before, s.Live())
	}

	root, err := s.Take(h)
	if err != nil {
		t.Fatalf("section must still be live: %v", err)
	}
	if len(root.SectionKeys()) != 0 {
		t.Fatal("self attach must not add a subsection")
	}
}

func TestState_ForgedHandle(t *testing.T) {
	s := newState(t)
	mustSection(t, s)

	err := s.AddField(42, "k", "v")
	if !errors.Is(err, errors.ErrHandleInvalid) {
		t.Fatalf("expected HandleInvalid, got %v", err)
	}
	if !errors.Is(s.Fault(), errors.ErrHandleInvalid) {
		t.Fatalf("fault not recorded: %v", s.Fault())
	}
}

func TestState_FirstFaultWins(t *testing.T) {
	s := newState(t)
	h := mustSection(t, s)

	_ = s.AddSection(h, "k", h)
	_ = s.Release(99)

	if !errors.Is(s.Fault(), errors.ErrSelfAttach) {
		t.Fatalf("first fault should be kept, got %v", s.Fault())
	}
}

func TestState_DoubleRelease(t *testing.T) {
	s := newState(t)
	h := mustSection(t, s)

	if err := s.Release(h); err != nil {
		t.Fatal(err)
	}
	if err := s.Release(h); !errors.Is(err, errors.ErrHandleInvalid) {
		t.Fatalf("expected HandleInvalid, got %v", err)
	}
}

func TestState_TakeInvalid(t *testing.T) {
	s := newState(t)
	h := mustSection(t, s)
	if err := s.Release(h); err != nil {
		t.Fatal(err)
	}

	_, err := s.Take(h)
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseFinalize, Kind: errors.KindHandleInvalid}) {
		t.Fatalf("expected finalize HandleInvalid, got %v", err)
	}
}

func TestState_Limit(t *testing.T) {
	s := newState(t, WithLimit(2))
	mustSection(t, s)
	mustSection(t, s)

	if _, err := s.NewSection(); !errors.Is(err, errors.ErrTableFull) {
		t.Fatalf("expected TableFull, got %v", err)
	}
}

func TestState_NextChar(t *testing.T) {
	s := NewState(NewStringStream("ab"))
	defer s.Close()

	for _, want := range "ab" {
		c, ok := s.NextChar()
		if !ok || c != want {
			t.Fatalf("NextChar = %q, %v; want %q", c, ok, want)
		}
	}
	if _, ok := s.NextChar(); ok {
		t.Fatal("expected end of stream")
	}
	if s.Calls(OpNextChar) != 3 {
		t.Errorf("Calls(next-char) = %d", s.Calls(OpNextChar))
	}
	if s.Consumed() != 2 {
		t.Errorf("Consumed = %d", s.Consumed())
	}
}

func TestState_TracerAndObserver(t *testing.T) {
	type call struct {
		op  Op
		err bool
	}
	var calls []call
	var events []resource.EventType

	s := newState(t,
		WithTracer(TracerFunc(func(op Op, err error) {
			calls = append(calls, call{op, err != nil})
		})),
		WithObserver(resource.ObserverFunc(func(e resource.Event) {
			events = append(events, e.Type)
		})),
	)

	p := mustSection(t, s)
	c := mustSection(t, s)
	_ = s.AddSection(p, "k", c)
	_ = s.Release(c)

	want := []call{
		{OpNewSection, false},
		{OpNewSection, false},
		{OpAddSection, false},
		{OpRelease, true},
	}
	if len(calls) != len(want) {
		t.Fatalf("traced %d calls, want %d", len(calls), len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}

	wantEvents := []resource.EventType{resource.EventCreated, resource.EventCreated, resource.EventTaken}
	if len(events) != len(wantEvents) {
		t.Fatalf("events = %v", events)
	}
	for i := range wantEvents {
		if events[i] != wantEvents[i] {
			t.Errorf("event %d = %v, want %v", i, events[i], wantEvents[i])
		}
	}
}

func TestState_CloseReportsLeaks(t *testing.T) {
	s := NewState(NewStringStream(""))
	root := mustSection(t, s)
	mustSection(t, s)
	mustSection(t, s)

	if _, err := s.Take(root); err != nil {
		t.Fatal(err)
	}
	if leaked := s.Close(); leaked != 2 {
		t.Fatalf("Close = %d, want 2", leaked)
	}
}

func TestOpNames(t *testing.T) {
	want := map[Op]string{
		OpNextChar:   "next",
		OpNewSection: "[constructor]section",
		OpAddField:   "[method]section.add-field",
		OpAddSection: "[method]section.add-section",
		OpRelease:    "[resource-drop]section",
	}
	for _, op := range Ops() {
		if op.ImportName() != want[op] {
			t.Errorf("%v.ImportName() = %q", op, op.ImportName())
		}
	}
	if Op(200).String() != "unknown" {
		t.Error("out of range op should be unknown")
	}
}
