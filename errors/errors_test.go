package errors

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:     PhaseHost,
				Kind:      KindHandleInvalid,
				Op:        "add-field",
				Handle:    0x1002,
				HasHandle: true,
				Plugin:    "ini",
				Detail:    "stale",
			},
			contains: []string{"[host]", "handle_invalid", "add-field", "0x1002", "ini", "stale"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLoad,
				Kind:  KindPluginLoad,
			},
			contains: []string{"[load]", "plugin_load"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindSandboxFault,
				Detail: "trap",
				Cause:  errors.New("unreachable"),
			},
			contains: []string{"[runtime]", "sandbox_fault", "trap", "caused by", "unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_NoHandleSuffixWithoutHandle(t *testing.T) {
	err := New(PhaseHost, KindTableFull).Detail("full").Build()
	if strings.Contains(err.Error(), "handle") {
		t.Errorf("unexpected handle in %q", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := PluginLoad("compile", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_IsSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		name     string
	}{
		{name: "plugin load", err: PluginLoad("x", nil), sentinel: ErrPluginLoad},
		{name: "instantiation", err: Instantiation("x", nil), sentinel: ErrInstantiation},
		{name: "handle invalid", err: HandleInvalid("release", 3), sentinel: ErrHandleInvalid},
		{name: "self attach", err: SelfAttach(3), sentinel: ErrSelfAttach},
		{name: "sandbox fault", err: SandboxFault("trap", nil), sentinel: ErrSandboxFault},
		{name: "table full", err: TableFull(4, nil), sentinel: ErrTableFull},
		{name: "invalid input", err: InvalidInput(PhaseInput, "x"), sentinel: ErrInvalidInput},
		{name: "not found", err: NotFound(PhaseResolve, "plugin", "x"), sentinel: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Fatalf("%v should match its sentinel", tt.err)
			}
			if errors.Is(tt.err, ErrSelfAttach) && tt.sentinel != ErrSelfAttach {
				t.Fatalf("%v should not match ErrSelfAttach", tt.err)
			}
		})
	}
}

func TestError_IsPhaseSpecific(t *testing.T) {
	err := HandleInvalid("add-field", 1)

	if !errors.Is(err, &Error{Phase: PhaseHost, Kind: KindHandleInvalid}) {
		t.Error("expected match with same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseFinalize, Kind: KindHandleInvalid}) {
		t.Error("expected no match with different phase")
	}
}

func TestError_IsThroughWrap(t *testing.T) {
	inner := SelfAttach(5)
	outer := SandboxFault("plugin aborted", inner)

	if !errors.Is(outer, ErrSelfAttach) {
		t.Error("wrapped self attach should be reachable")
	}
	if KindOf(outer) != KindSandboxFault {
		t.Errorf("KindOf = %q, want %q", KindOf(outer), KindSandboxFault)
	}
}

func TestError_TimeoutCause(t *testing.T) {
	err := SandboxFault("timeout", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("deadline should be reachable through the chain")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseFinalize, KindHandleInvalid).
		Op("take").
		Handle(9).
		Plugin("toml").
		Detail("root %s", "missing").
		Cause(errors.New("boom")).
		Build()

	if err.Op != "take" || err.Handle != 9 || !err.HasHandle {
		t.Errorf("unexpected builder result: %+v", err)
	}
	if err.Detail != "root missing" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Plugin != "toml" {
		t.Errorf("Plugin = %q", err.Plugin)
	}
	if err.Cause == nil {
		t.Error("Cause not set")
	}
}

func TestKindOf_Foreign(t *testing.T) {
	if k := KindOf(errors.New("plain")); k != "" {
		t.Errorf("KindOf(plain) = %q, want empty", k)
	}
}
