package trace

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

var order = binary.LittleEndian

const (
	opNop      = 0
	opStep     = 1
	opTrap     = 2
	opHalt     = 3
	opKeyframe = 4
)

// Op is a single record in the trace op stream.
type Op interface {
	// Sizeof returns the packed size in bytes, including the tag byte.
	Sizeof() int
	// Pack writes the record into p, which must hold Sizeof bytes.
	Pack(p []byte)
	// Unpack reads the record body, everything after the tag byte.
	Unpack(r io.Reader) (int, error)
}

// Unpack reads one op from the stream. It returns io.EOF at a clean end
// of stream and io.ErrUnexpectedEOF for a record cut short.
func Unpack(r io.Reader) (Op, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, err
	}

	var op Op
	switch tag[0] {
	case opNop:
		op = &OpNop{}
	case opStep:
		op = &OpStep{}
	case opTrap:
		op = &OpTrap{}
	case opHalt:
		op = &OpHalt{}
	case opKeyframe:
		op = &OpKeyframe{}
	default:
		return nil, errors.Errorf("unknown op: %d", tag[0])
	}

	if _, err := op.Unpack(r); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, "failed to unpack op")
	}
	return op, nil
}

// OpNop is a padding record carrying no data.
type OpNop struct{}

func (o *OpNop) Sizeof() int                     { return 1 }
func (o *OpNop) Pack(p []byte)                   { p[0] = opNop }
func (o *OpNop) Unpack(r io.Reader) (int, error) { return 0, nil }

// OpStep records one retired instruction.
type OpStep struct {
	PC   uint64
	Word uint32
}

func (o *OpStep) Sizeof() int { return 1 + 8 + 4 }

func (o *OpStep) Pack(p []byte) {
	p[0] = opStep
	order.PutUint64(p[1:], o.PC)
	order.PutUint32(p[9:], o.Word)
}

func (o *OpStep) Unpack(r io.Reader) (int, error) {
	var tmp [8 + 4]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.PC = order.Uint64(tmp[:])
		o.Word = order.Uint32(tmp[8:])
	}
	return n, err
}

// OpTrap records an accepted trap: the cause code, the trapping PC, and
// the trap value.
type OpTrap struct {
	Cause uint8
	PC    uint64
	Value uint64
}

func (o *OpTrap) Sizeof() int { return 1 + 1 + 8 + 8 }

func (o *OpTrap) Pack(p []byte) {
	p[0] = opTrap
	p[1] = o.Cause
	order.PutUint64(p[2:], o.PC)
	order.PutUint64(p[10:], o.Value)
}

func (o *OpTrap) Unpack(r io.Reader) (int, error) {
	var tmp [1 + 8 + 8]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.Cause = tmp[0]
		o.PC = order.Uint64(tmp[1:])
		o.Value = order.Uint64(tmp[9:])
	}
	return n, err
}

// OpHalt records the program exit.
type OpHalt struct {
	Code int64
}

func (o *OpHalt) Sizeof() int { return 1 + 8 }

func (o *OpHalt) Pack(p []byte) {
	p[0] = opHalt
	order.PutUint64(p[1:], uint64(o.Code))
}

func (o *OpHalt) Unpack(r io.Reader) (int, error) {
	var tmp [8]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.Code = int64(order.Uint64(tmp[:]))
	}
	return n, err
}

// OpKeyframe records the full register state so tools can pick up a
// trace mid-stream without replaying from the start.
type OpKeyframe struct {
	PC   uint64
	Regs [32]uint64
}

func (o *OpKeyframe) Sizeof() int { return 1 + 8 + 32*8 }

func (o *OpKeyframe) Pack(p []byte) {
	p[0] = opKeyframe
	order.PutUint64(p[1:], o.PC)
	for i, v := range o.Regs {
		order.PutUint64(p[9+i*8:], v)
	}
}

func (o *OpKeyframe) Unpack(r io.Reader) (int, error) {
	var tmp [8 + 32*8]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.PC = order.Uint64(tmp[:])
		for i := range o.Regs {
			o.Regs[i] = order.Uint64(tmp[8+i*8:])
		}
	}
	return n, err
}
