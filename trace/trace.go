// Package trace records and replays compact binary execution traces.
//
// A trace file opens with a fixed uncompressed header naming the ISA
// the program ran under, followed by a snappy-compressed stream of op
// records. Keyframes carry the full register state so tools can pick
// up the architectural state mid-trace without replaying from the
// start.
package trace

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/hartlab/hartsim/emu"
)

const (
	// Magic identifies a hartsim trace file.
	Magic = "HSTR"

	// Version is the trace format version this package writes.
	Version = 1

	// DefaultKeyframeInterval is the number of retired instructions
	// between keyframes.
	DefaultKeyframeInterval = 1024
)

// Header is the uncompressed preamble of a trace file.
type Header struct {
	Magic   string `struc:"[4]byte"`
	Version uint32
	ISA     string `struc:"[32]byte"`
}

// Writer streams execution events into a trace file. It implements
// emu.Observer, so attaching it to an emulator is all the wiring
// needed:
//
//	w, err := trace.NewWriter(f, e)
//	e.AddObserver(w)
//
// A keyframe records the register state valid at its position in the
// stream, before the following record takes effect. One is written
// when the writer is created and another after every Interval retired
// instructions.
type Writer struct {
	// Interval is the number of retired instructions between
	// keyframes. Zero disables periodic keyframes.
	Interval uint64

	w     io.WriteCloser
	zw    *snappy.Writer
	e     *emu.Emulator
	steps uint64
	buf   []byte
	err   error
}

// NewWriter writes the trace header and an initial keyframe of the
// emulator's current state. Create the writer after loading the
// program so the first keyframe holds the true entry state.
func NewWriter(w io.WriteCloser, e *emu.Emulator) (*Writer, error) {
	header := &Header{Magic: Magic, Version: Version, ISA: isaName(e)}
	if err := struc.Pack(w, header); err != nil {
		return nil, errors.Wrap(err, "failed to pack trace header")
	}

	t := &Writer{
		Interval: DefaultKeyframeInterval,
		w:        w,
		zw:       snappy.NewBufferedWriter(w),
		e:        e,
	}
	t.keyframe()
	if t.err != nil {
		return nil, t.err
	}
	return t, nil
}

// isaName renders the emulator configuration as an ISA string such as
// "rv64im".
func isaName(e *emu.Emulator) string {
	name := fmt.Sprintf("rv%di", e.XLen().Bits())
	if e.Config().EnableM {
		name += "m"
	}
	return name
}

func (w *Writer) keyframe() {
	w.emit(&OpKeyframe{PC: w.e.RegFile().PC(), Regs: w.e.RegFile().Regs()})
}

// Step records a retired instruction. The emulator has already
// advanced past it, so a keyframe emitted here snapshots the state the
// next record will execute from.
func (w *Writer) Step(pc uint64, word uint32) {
	w.emit(&OpStep{PC: pc, Word: word})
	w.steps++
	if w.Interval > 0 && w.steps%w.Interval == 0 {
		w.keyframe()
	}
}

// Trap records an accepted trap.
func (w *Writer) Trap(cause emu.Cause, pc uint64, tval uint64) {
	w.emit(&OpTrap{Cause: uint8(cause), PC: pc, Value: tval})
}

// Halt records the program exit.
func (w *Writer) Halt(exitCode int64) {
	w.emit(&OpHalt{Code: exitCode})
}

// emit packs one op into the compressed stream. The first error
// sticks and later events are dropped, so a failing trace sink does
// not disturb the run it is observing.
func (w *Writer) emit(op Op) {
	if w.err != nil {
		return
	}
	n := op.Sizeof()
	if n > len(w.buf) {
		w.buf = make([]byte, n)
	}
	op.Pack(w.buf[:n])
	if _, err := w.zw.Write(w.buf[:n]); err != nil {
		w.err = errors.Wrap(err, "failed to write trace op")
	}
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	return w.err
}

// Close flushes the compressed stream and closes the underlying
// writer. It returns the first error seen over the writer's lifetime.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil && w.err == nil {
		w.err = errors.Wrap(err, "failed to flush trace")
	}
	if err := w.w.Close(); err != nil && w.err == nil {
		w.err = err
	}
	return w.err
}

// Reader replays a trace file one op at a time.
type Reader struct {
	Header Header

	r  io.ReadCloser
	zr *snappy.Reader
}

// NewReader reads and validates the trace header and positions the
// reader at the first op.
func NewReader(r io.ReadCloser) (*Reader, error) {
	t := &Reader{r: r}
	if err := struc.Unpack(r, &t.Header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack trace header")
	}
	if t.Header.Magic != Magic {
		return nil, errors.New("invalid trace file magic")
	}
	t.Header.ISA = strings.TrimRight(t.Header.ISA, "\x00")
	t.zr = snappy.NewReader(r)
	return t, nil
}

// Next returns the next op in the trace, or io.EOF at the end.
func (t *Reader) Next() (Op, error) {
	return Unpack(t.zr)
}

// Close releases the underlying reader.
func (t *Reader) Close() error {
	t.zr.Reset(nil)
	return t.r.Close()
}
