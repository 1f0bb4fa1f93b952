package host

// Host module and entry point names shared by all sandbox engines.
const (
	// ModuleName is the import module wasm plugins bind against.
	ModuleName = "loara:dyparser/types"

	// ExportParse is the zero-argument entry point returning the root handle.
	ExportParse = "parse"

	// ExportParseStream is the component-style alias of ExportParse.
	ExportParseStream = "loara:dyparser/parser#parse-stream"

	// ExportMemory is the linear memory strings are read from.
	ExportMemory = "memory"

	// EndOfStream is what next returns to wasm once the input is exhausted.
	EndOfStream int32 = -1
)

// Op identifies a host callback.
type Op uint8

const (
	OpNextChar Op = iota
	OpNewSection
	OpAddField
	OpAddSection
	OpRelease
	opCount
)

var opNames = [opCount]string{
	OpNextChar:   "next-char",
	OpNewSection: "new-section",
	OpAddField:   "add-field",
	OpAddSection: "add-section",
	OpRelease:    "release",
}

var importNames = [opCount]string{
	OpNextChar:   "next",
	OpNewSection: "[constructor]section",
	OpAddField:   "[method]section.add-field",
	OpAddSection: "[method]section.add-section",
	OpRelease:    "[resource-drop]section",
}

func (o Op) String() string {
	if o < opCount {
		return opNames[o]
	}
	return "unknown"
}

// ImportName returns the wasm import name of o inside ModuleName.
func (o Op) ImportName() string {
	if o < opCount {
		return importNames[o]
	}
	return ""
}

// Ops lists every callback in declaration order.
func Ops() []Op {
	ops := make([]Op, opCount)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}
