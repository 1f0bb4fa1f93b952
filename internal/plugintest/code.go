package plugintest

import "bytes"

const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0B
	opBr          = 0x0C
	opBrIf        = 0x0D
	opReturn      = 0x0F
	opCall        = 0x10
	opDrop        = 0x1A
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opLocalTee    = 0x22
	opI32Load8U   = 0x2D
	opI32Store8   = 0x3A
	opI32Const    = 0x41
	opI32Eqz      = 0x45
	opI32Eq       = 0x46
	opI32Ne       = 0x47
	opI32LtS      = 0x48
	opI32Add      = 0x6A
	opI32Sub      = 0x6B

	blockEmpty = 0x40
)

// Code is a function body under construction. The closing end of the body
// is added by Bytes.
type Code struct {
	buf bytes.Buffer
}

// NewCode returns an empty body.
func NewCode() *Code {
	return &Code{}
}

func (c *Code) op(b byte) *Code {
	c.buf.WriteByte(b)
	return c
}

func (c *Code) opU32(b byte, v uint32) *Code {
	c.buf.WriteByte(b)
	writeU32(&c.buf, v)
	return c
}

func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
func (c *Code) Block() *Code       { return c.op(opBlock).op(blockEmpty) }
func (c *Code) Loop() *Code        { return c.op(opLoop).op(blockEmpty) }
func (c *Code) If() *Code          { return c.op(opIf).op(blockEmpty) }
func (c *Code) Else() *Code        { return c.op(opElse) }
func (c *Code) End() *Code         { return c.op(opEnd) }
func (c *Code) Return() *Code      { return c.op(opReturn) }
func (c *Code) Drop() *Code        { return c.op(opDrop) }
func (c *Code) I32Eqz() *Code      { return c.op(opI32Eqz) }
func (c *Code) I32Eq() *Code       { return c.op(opI32Eq) }
func (c *Code) I32Ne() *Code       { return c.op(opI32Ne) }
func (c *Code) I32LtS() *Code      { return c.op(opI32LtS) }
func (c *Code) I32Add() *Code      { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code      { return c.op(opI32Sub) }

func (c *Code) Br(depth uint32) *Code     { return c.opU32(opBr, depth) }
func (c *Code) BrIf(depth uint32) *Code   { return c.opU32(opBrIf, depth) }
func (c *Code) Call(idx uint32) *Code     { return c.opU32(opCall, idx) }
func (c *Code) LocalGet(idx uint32) *Code { return c.opU32(opLocalGet, idx) }
func (c *Code) LocalSet(idx uint32) *Code { return c.opU32(opLocalSet, idx) }
func (c *Code) LocalTee(idx uint32) *Code { return c.opU32(opLocalTee, idx) }

// I32Const pushes v.
func (c *Code) I32Const(v int32) *Code {
	c.buf.WriteByte(opI32Const)
	writeS32(&c.buf, v)
	return c
}

// I32Load8U loads a byte from address+offset.
func (c *Code) I32Load8U(offset uint32) *Code {
	return c.op(opI32Load8U).memarg(offset)
}

// I32Store8 stores the low byte of a value at address+offset.
func (c *Code) I32Store8(offset uint32) *Code {
	return c.op(opI32Store8).memarg(offset)
}

func (c *Code) memarg(offset uint32) *Code {
	writeU32(&c.buf, 0) // alignment 2^0
	writeU32(&c.buf, offset)
	return c
}

// Bytes returns the encoded body including the final end.
func (c *Code) Bytes() []byte {
	out := make([]byte, c.buf.Len()+1)
	copy(out, c.buf.Bytes())
	out[len(out)-1] = opEnd
	return out
}
