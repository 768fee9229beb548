package trace

import (
	"fmt"
	"io"
	"strings"

	"github.com/hartlab/hartsim/emu"
	"github.com/hartlab/hartsim/insts"
)

// Dump pretty-prints every op of a trace to w, one line per record.
// Step records are disassembled with a decoder matching the trace's
// ISA; words that no longer decode print as raw hex. With showRegs,
// keyframes expand into a register dump with ABI names.
func Dump(t *Reader, w io.Writer, showRegs bool) error {
	decoder := decoderFor(t.Header.ISA)

	for {
		op, err := t.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch o := op.(type) {
		case *OpStep:
			text := "?"
			if inst, derr := decoder.Decode(o.Word); derr == nil {
				text = inst.String()
			}
			fmt.Fprintf(w, "%016x  %08x  %s\n", o.PC, o.Word, text)
		case *OpTrap:
			fmt.Fprintf(w, "%016x  trap: %v (tval=0x%x)\n", o.PC, emu.Cause(o.Cause), o.Value)
		case *OpKeyframe:
			fmt.Fprintf(w, "%016x  keyframe\n", o.PC)
			if showRegs {
				dumpRegs(w, &o.Regs)
			}
		case *OpHalt:
			fmt.Fprintf(w, "exit %d\n", o.Code)
		}
	}
}

func dumpRegs(w io.Writer, regs *[32]uint64) {
	for i := 0; i < 32; i += 4 {
		for j := i; j < i+4; j++ {
			fmt.Fprintf(w, "  %4s=%016x", insts.RegName(uint8(j)), regs[j])
		}
		fmt.Fprintln(w)
	}
}

func decoderFor(isa string) *insts.Decoder {
	xlen := insts.XLen64
	if strings.HasPrefix(isa, "rv32") {
		xlen = insts.XLen32
	}
	var opts []insts.DecoderOption
	if strings.HasSuffix(isa, "m") {
		opts = append(opts, insts.WithM())
	}
	return insts.NewDecoder(xlen, opts...)
}
