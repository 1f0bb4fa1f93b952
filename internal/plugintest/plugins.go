package plugintest

import (
	"github.com/wippyai/dyparser/host"
)

var (
	none = []ValType(nil)
	i32  = []ValType{I32}
)

func i32n(n int) []ValType {
	out := make([]ValType, n)
	for i := range out {
		out[i] = I32
	}
	return out
}

// Host holds the function indices of the host imports.
type Host struct {
	Next           uint32
	NewSection     uint32
	AddFieldFunc   uint32
	AddSectionFunc uint32
	Release        uint32
}

// ImportHost declares every host function on m.
func ImportHost(m *Module) Host {
	return Host{
		Next:           m.Import(host.ModuleName, host.OpNextChar.ImportName(), none, i32),
		NewSection:     m.Import(host.ModuleName, host.OpNewSection.ImportName(), none, i32),
		AddFieldFunc:   m.Import(host.ModuleName, host.OpAddField.ImportName(), i32n(5), none),
		AddSectionFunc: m.Import(host.ModuleName, host.OpAddSection.ImportName(), i32n(4), none),
		Release:        m.Import(host.ModuleName, host.OpRelease.ImportName(), i32n(1), none),
	}
}

// AddField emits add-field(self, key, value) for strings placed in memory.
func (h Host) AddField(c *Code, self uint32, key, value Str) *Code {
	return c.LocalGet(self).
		I32Const(key.Ptr).I32Const(key.Len).
		I32Const(value.Ptr).I32Const(value.Len).
		Call(h.AddFieldFunc)
}

// AddSection emits add-section(parent, key, child) using locals.
func (h Host) AddSection(c *Code, parent uint32, key Str, child uint32) *Code {
	return c.LocalGet(parent).
		I32Const(key.Ptr).I32Const(key.Len).
		LocalGet(child).
		Call(h.AddSectionFunc)
}

// Str locates a string in guest memory.
type Str struct {
	Ptr int32
	Len int32
}

// Strings lays out strs back to back from address 0 and returns their
// locations.
func Strings(m *Module, strs ...string) []Str {
	var data []byte
	out := make([]Str, len(strs))
	for i, s := range strs {
		out[i] = Str{Ptr: int32(len(data)), Len: int32(len(s))}
		data = append(data, s...)
	}
	m.Data(0, data)
	return out
}

// plugin builds a module with memory and the host imports, and exports body
// as parse with the given number of locals.
func plugin(locals uint32, build func(m *Module, h Host) *Code) []byte {
	m := NewModule()
	h := ImportHost(m)
	m.Memory(1, true)
	code := build(m, h)
	m.Export(host.ExportParse, m.Func(none, i32, locals, code))
	return m.Encode()
}

// Scenario builds the tree {a: [1, 2], b: [{x: [3]}]}.
func Scenario() []byte {
	return plugin(2, func(m *Module, h Host) *Code {
		s := Strings(m, "a", "1", "2", "x", "3", "b")
		a, one, two, x, three, b := s[0], s[1], s[2], s[3], s[4], s[5]

		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		h.AddField(c, 0, a, one)
		h.AddField(c, 0, a, two)
		c.Call(h.NewSection).LocalSet(1)
		h.AddField(c, 1, x, three)
		h.AddSection(c, 0, b, 1)
		return c.LocalGet(0)
	})
}

// echoBuffer is where Echo copies the input.
const echoBuffer = 1024

// Echo returns a root with a single field "text" holding the whole input.
// Characters are truncated to one byte, so inputs should be ASCII.
func Echo() []byte {
	return plugin(3, echo)
}

func echo(m *Module, h Host) *Code {
	key := Strings(m, "text")[0]
	const root, n, ch = 0, 1, 2

	c := NewCode()
	c.Call(h.NewSection).LocalSet(root)
	c.Block().Loop().
		Call(h.Next).LocalTee(ch).I32Const(host.EndOfStream).I32Eq().BrIf(1).
		LocalGet(n).LocalGet(ch).I32Store8(echoBuffer).
		LocalGet(n).I32Const(1).I32Add().LocalSet(n).
		Br(0).
		End().End()
	c.LocalGet(root).
		I32Const(key.Ptr).I32Const(key.Len).
		I32Const(echoBuffer).LocalGet(n).
		Call(h.AddFieldFunc)
	return c.LocalGet(root)
}

// EagerEcho is Echo with an _initialize that reads one character before
// parse runs.
func EagerEcho() []byte {
	return initialized(echo, func(h Host) *Code {
		return NewCode().Call(h.Next).Drop()
	})
}

// EagerSection creates a section from _initialize.
func EagerSection() []byte {
	return initialized(drain, func(h Host) *Code {
		return NewCode().Call(h.NewSection).Drop()
	})
}

// initialized builds a plugin that also exports init as _initialize.
func initialized(build func(m *Module, h Host) *Code, init func(h Host) *Code) []byte {
	m := NewModule()
	h := ImportHost(m)
	m.Memory(1, true)
	m.Export(host.ExportParse, m.Func(none, i32, 3, build(m, h)))
	m.Export("_initialize", m.Func(none, none, 0, init(h)))
	return m.Encode()
}

// Drain reads the whole input and returns an empty root.
func Drain() []byte {
	return plugin(0, drain)
}

func drain(_ *Module, h Host) *Code {
	c := NewCode()
	c.Block().Loop().
		Call(h.Next).I32Const(host.EndOfStream).I32Eq().BrIf(1).
		Br(0).
		End().End()
	return c.Call(h.NewSection)
}

// ForgedHandle calls add-field on handle 42, which was never allocated.
func ForgedHandle() []byte {
	return plugin(1, func(m *Module, h Host) *Code {
		k := Strings(m, "k")[0]
		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		c.I32Const(42).
			I32Const(k.Ptr).I32Const(k.Len).
			I32Const(k.Ptr).I32Const(k.Len).
			Call(h.AddFieldFunc)
		return c.LocalGet(0)
	})
}

// SelfAttach attaches the root to itself.
func SelfAttach() []byte {
	return plugin(1, func(m *Module, h Host) *Code {
		k := Strings(m, "self")[0]
		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		h.AddSection(c, 0, k, 0)
		return c.LocalGet(0)
	})
}

// UseAfterAttach writes to a child after attaching it.
func UseAfterAttach() []byte {
	return plugin(2, func(m *Module, h Host) *Code {
		k := Strings(m, "k")[0]
		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		c.Call(h.NewSection).LocalSet(1)
		h.AddSection(c, 0, k, 1)
		h.AddField(c, 1, k, k)
		return c.LocalGet(0)
	})
}

// DoubleRelease releases the same section twice.
func DoubleRelease() []byte {
	return plugin(1, func(_ *Module, h Host) *Code {
		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		c.LocalGet(0).Call(h.Release)
		c.LocalGet(0).Call(h.Release)
		return c.Call(h.NewSection)
	})
}

// ReturnsReleased returns a handle it has already released.
func ReturnsReleased() []byte {
	return plugin(1, func(_ *Module, h Host) *Code {
		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		c.LocalGet(0).Call(h.Release)
		return c.LocalGet(0)
	})
}

// ReturnsAttached returns a child that was attached to another section.
func ReturnsAttached() []byte {
	return plugin(2, func(m *Module, h Host) *Code {
		k := Strings(m, "k")[0]
		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		c.Call(h.NewSection).LocalSet(1)
		h.AddSection(c, 0, k, 1)
		return c.LocalGet(1)
	})
}

// Leak allocates a section it neither attaches nor releases.
func Leak() []byte {
	return plugin(1, func(_ *Module, h Host) *Code {
		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		c.Call(h.NewSection).Drop()
		return c.LocalGet(0)
	})
}

// Flood allocates sections until the host refuses.
func Flood() []byte {
	return plugin(0, func(_ *Module, h Host) *Code {
		c := NewCode()
		c.Loop().Call(h.NewSection).Drop().Br(0).End()
		return c.I32Const(0)
	})
}

// Trap executes unreachable.
func Trap() []byte {
	return plugin(0, func(_ *Module, _ Host) *Code {
		return NewCode().Unreachable()
	})
}

// Spin never returns.
func Spin() []byte {
	return plugin(0, func(_ *Module, _ Host) *Code {
		return NewCode().Loop().Br(0).End().I32Const(0)
	})
}

// OutOfBounds passes a key that runs past the end of memory.
func OutOfBounds() []byte {
	return plugin(1, func(m *Module, h Host) *Code {
		v := Strings(m, "v")[0]
		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		h.AddField(c, 0, Str{Ptr: 65530, Len: 100}, v)
		return c.LocalGet(0)
	})
}

// InvalidUTF8 passes a key that is not UTF-8.
func InvalidUTF8() []byte {
	return plugin(1, func(m *Module, h Host) *Code {
		m.Data(16, []byte{0xff, 0xfe})
		c := NewCode()
		c.Call(h.NewSection).LocalSet(0)
		h.AddField(c, 0, Str{Ptr: 16, Len: 2}, Str{Ptr: 16, Len: 1})
		return c.LocalGet(0)
	})
}

// ParseStreamAlias exports the entry point under its component-style name.
func ParseStreamAlias() []byte {
	m := NewModule()
	h := ImportHost(m)
	m.Memory(1, true)
	m.Export(host.ExportParseStream, m.Func(none, i32, 0, NewCode().Call(h.NewSection)))
	return m.Encode()
}

// MissingExport exports its entry point under the wrong name.
func MissingExport() []byte {
	m := NewModule()
	h := ImportHost(m)
	m.Memory(1, true)
	m.Export("main", m.Func(none, i32, 0, NewCode().Call(h.NewSection)))
	return m.Encode()
}

// WrongEntrySignature exports parse taking a parameter.
func WrongEntrySignature() []byte {
	m := NewModule()
	m.Export(host.ExportParse, m.Func(i32, i32, 0, NewCode().LocalGet(0)))
	return m.Encode()
}

// UnknownImport imports a function the host does not provide.
func UnknownImport() []byte {
	m := NewModule()
	m.Import("env", "abort", none, none)
	m.Export(host.ExportParse, m.Func(none, i32, 0, NewCode().I32Const(0)))
	return m.Encode()
}

// WrongImportSignature imports next with a parameter.
func WrongImportSignature() []byte {
	m := NewModule()
	next := m.Import(host.ModuleName, host.OpNextChar.ImportName(), i32, i32)
	m.Export(host.ExportParse, m.Func(none, i32, 0, NewCode().I32Const(0).Call(next)))
	return m.Encode()
}

// NoMemory uses string imports without exporting memory.
func NoMemory() []byte {
	m := NewModule()
	h := ImportHost(m)
	m.Memory(1, false)
	m.Export(host.ExportParse, m.Func(none, i32, 0, NewCode().Call(h.NewSection)))
	return m.Encode()
}

// Hello writes "hello\n" to stdout through WASI, then returns an empty root.
func Hello() []byte {
	m := NewModule()
	fdWrite := m.Import("wasi_snapshot_preview1", "fd_write", i32n(4), i32)
	h := ImportHost(m)
	m.Memory(1, true)
	// iovec{buf: 32, len: 6} at 16; bytes written go to 8.
	m.Data(16, []byte{32, 0, 0, 0, 6, 0, 0, 0})
	m.Data(32, []byte("hello\n"))

	c := NewCode()
	c.I32Const(1).I32Const(16).I32Const(1).I32Const(8).Call(fdWrite).Drop()
	c.Call(h.NewSection)
	m.Export(host.ExportParse, m.Func(none, i32, 0, c))
	return m.Encode()
}

// Malformed is not a wasm module.
func Malformed() []byte {
	return []byte("\x00asm\x01\x00\x00\x00\xff\xff")
}
