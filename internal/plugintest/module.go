package plugintest

import (
	"bytes"
	"encoding/binary"
)

// ValType is a wasm value type.
type ValType byte

// I32 is the only value type the plugin ABI uses.
const I32 ValType = 0x7F

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	funcTypeByte = 0x60
	kindFunc     = 0x00
	kindMemory   = 0x02
)

type funcType struct {
	params  []ValType
	results []ValType
}

type importFunc struct {
	module string
	name   string
	typ    uint32
}

type function struct {
	code   []byte
	typ    uint32
	locals uint32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type segment struct {
	init   []byte
	offset int32
}

// Module assembles a core wasm module. Imports must be declared before any
// function is added, since both share one index space.
type Module struct {
	types        []funcType
	imports      []importFunc
	funcs        []function
	exports      []export
	data         []segment
	memoryPages  uint32
	hasMemory    bool
	exportMemory bool
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{}
}

func (m *Module) addType(params, results []ValType) uint32 {
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

// Import declares an imported function and returns its function index.
func (m *Module) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("plugintest: imports must precede functions")
	}
	m.imports = append(m.imports, importFunc{module: module, name: name, typ: m.addType(params, results)})
	return uint32(len(m.imports) - 1)
}

// Func adds a function with locals extra i32 locals and returns its index.
func (m *Module) Func(params, results []ValType, locals uint32, code *Code) uint32 {
	m.funcs = append(m.funcs, function{typ: m.addType(params, results), locals: locals, code: code.Bytes()})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Export exports function idx under name.
func (m *Module) Export(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: idx})
}

// Memory declares memory 0 with pages initial pages, optionally exported as
// "memory".
func (m *Module) Memory(pages uint32, exported bool) {
	m.hasMemory = true
	m.memoryPages = pages
	m.exportMemory = exported
}

// Data places init at offset in memory 0.
func (m *Module) Data(offset int32, init []byte) {
	m.data = append(m.data, segment{offset: offset, init: init})
}

// Encode returns the module binary.
func (m *Module) Encode() []byte {
	var w bytes.Buffer
	w.WriteString("\x00asm")
	_ = binary.Write(&w, binary.LittleEndian, uint32(1))

	if len(m.types) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.types)))
		for _, ft := range m.types {
			sec.WriteByte(funcTypeByte)
			writeValTypes(&sec, ft.params)
			writeValTypes(&sec, ft.results)
		}
		writeSection(&w, sectionType, sec.Bytes())
	}

	if len(m.imports) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.imports)))
		for _, imp := range m.imports {
			writeName(&sec, imp.module)
			writeName(&sec, imp.name)
			sec.WriteByte(kindFunc)
			writeU32(&sec, imp.typ)
		}
		writeSection(&w, sectionImport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.funcs)))
		for _, fn := range m.funcs {
			writeU32(&sec, fn.typ)
		}
		writeSection(&w, sectionFunction, sec.Bytes())
	}

	if m.hasMemory {
		var sec bytes.Buffer
		writeU32(&sec, 1)
		sec.WriteByte(0x00) // limits: min only
		writeU32(&sec, m.memoryPages)
		writeSection(&w, sectionMemory, sec.Bytes())
	}

	exports := m.exports
	if m.hasMemory && m.exportMemory {
		exports = append(exports, export{name: "memory", kind: kindMemory})
	}
	if len(exports) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(exports)))
		for _, exp := range exports {
			writeName(&sec, exp.name)
			sec.WriteByte(exp.kind)
			writeU32(&sec, exp.idx)
		}
		writeSection(&w, sectionExport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.funcs)))
		for _, fn := range m.funcs {
			var body bytes.Buffer
			if fn.locals > 0 {
				writeU32(&body, 1)
				writeU32(&body, fn.locals)
				body.WriteByte(byte(I32))
			} else {
				writeU32(&body, 0)
			}
			body.Write(fn.code)
			writeU32(&sec, uint32(body.Len()))
			sec.Write(body.Bytes())
		}
		writeSection(&w, sectionCode, sec.Bytes())
	}

	if len(m.data) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.data)))
		for _, d := range m.data {
			writeU32(&sec, 0) // active, memory 0
			sec.WriteByte(opI32Const)
			writeS32(&sec, d.offset)
			sec.WriteByte(opEnd)
			writeU32(&sec, uint32(len(d.init)))
			sec.Write(d.init)
		}
		writeSection(&w, sectionData, sec.Bytes())
	}

	return w.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	writeU32(w, uint32(len(data)))
	w.Write(data)
}

func writeValTypes(w *bytes.Buffer, types []ValType) {
	writeU32(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(byte(t))
	}
}
