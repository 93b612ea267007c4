// Package ripaddr resolves the absolute address targeted by a RIP-relative
// instruction found at a signature match.
package ripaddr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"btndump/process"

	"golang.org/x/arch/x86/x86asm"
)

const (
	// DisplacementSize is the width of a rel32/disp32 field
	DisplacementSize = 4

	// maxInstructionLength is the architectural x86 limit
	maxInstructionLength = 15
)

var (
	// ErrTruncatedMatch is returned when the buffer ends before the displacement field does
	ErrTruncatedMatch = errors.New("truncated match")

	// ErrInvalidInstruction is returned for inconsistent geometry or an instruction without a RIP-relative operand
	ErrInvalidInstruction = errors.New("invalid instruction")
)

// Instruction describes where the disp32 sits in the instruction at a match
// and how long the instruction is. For `lea rdx, [rip+disp32]` (48 8D 15 xx xx xx xx)
// that is DisplacementOffset 3 and Length 7.
type Instruction struct {
	DisplacementOffset int
	Length             int
}

// Validate checks the displacement field lies inside the instruction
func (i Instruction) Validate() error {
	if i.DisplacementOffset < 0 || i.Length <= 0 || i.Length > maxInstructionLength {
		return fmt.Errorf("%w: displacement offset %d, length %d", ErrInvalidInstruction, i.DisplacementOffset, i.Length)
	}
	if i.DisplacementOffset+DisplacementSize > i.Length {
		return fmt.Errorf("%w: displacement at %d does not fit in %d bytes", ErrInvalidInstruction, i.DisplacementOffset, i.Length)
	}
	return nil
}

// Resolve computes base + matchOffset + Length + disp32, reading the displacement
// from the local snapshot buf. The snapshot is byte-identical to the remote module.
func Resolve(buf []byte, matchOffset int, base process.ProcessMemoryAddress, inst Instruction) (process.ProcessMemoryAddress, error) {
	if err := inst.Validate(); err != nil {
		return 0, err
	}

	start := matchOffset + inst.DisplacementOffset
	if matchOffset < 0 || start+DisplacementSize > len(buf) {
		return 0, fmt.Errorf("%w: displacement at 0x%x needs %d bytes, buffer is 0x%x", ErrTruncatedMatch, start, DisplacementSize, len(buf))
	}

	disp := int32(binary.LittleEndian.Uint32(buf[start:]))

	next := int64(base) + int64(matchOffset) + int64(inst.Length)
	return process.ProcessMemoryAddress(next + int64(disp)), nil
}

// Decode disassembles the x86-64 instruction at matchOffset and returns its geometry.
// The instruction must carry a [rip+disp32] memory operand.
func Decode(buf []byte, matchOffset int) (Instruction, error) {
	if matchOffset < 0 || matchOffset >= len(buf) {
		return Instruction{}, fmt.Errorf("%w: offset 0x%x outside buffer of 0x%x", ErrTruncatedMatch, matchOffset, len(buf))
	}

	end := matchOffset + maxInstructionLength
	clipped := end > len(buf)
	if clipped {
		end = len(buf)
	}
	code := buf[matchOffset:end]

	// x86asm can decode a cut off instruction as its prefixes alone, so on a window
	// clipped by the buffer end anything short of a rip operand is a truncation
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		if clipped || errors.Is(err, x86asm.ErrTruncated) {
			return Instruction{}, fmt.Errorf("%w: %v", ErrTruncatedMatch, err)
		}
		return Instruction{}, fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}

	mem, ok := ripOperand(inst)
	if !ok {
		if clipped {
			return Instruction{}, fmt.Errorf("%w: %s at the end of the buffer", ErrTruncatedMatch, x86asm.IntelSyntax(inst, 0, nil))
		}
		return Instruction{}, fmt.Errorf("%w: %s has no rip-relative operand", ErrInvalidInstruction, x86asm.IntelSyntax(inst, 0, nil))
	}

	offset, ok := displacementOffset(code[:inst.Len], int32(mem.Disp))
	if !ok {
		return Instruction{}, fmt.Errorf("%w: displacement 0x%x not found in %x", ErrInvalidInstruction, mem.Disp, code[:inst.Len])
	}

	return Instruction{DisplacementOffset: offset, Length: inst.Len}, nil
}

func ripOperand(inst x86asm.Inst) (x86asm.Mem, bool) {
	for _, arg := range inst.Args {
		if mem, ok := arg.(x86asm.Mem); ok && mem.Base == x86asm.RIP {
			return mem, true
		}
	}
	return x86asm.Mem{}, false
}

// displacementOffset finds the disp32 inside the encoded instruction. It sits right
// before the immediate, so the candidate closest to the end with a plausible
// immediate size (0, 1, 2 or 4 bytes) behind it wins.
func displacementOffset(code []byte, disp int32) (int, bool) {
	var want [DisplacementSize]byte
	binary.LittleEndian.PutUint32(want[:], uint32(disp))

	for _, immSize := range []int{0, 1, 2, 4} {
		offset := len(code) - DisplacementSize - immSize
		if offset < 1 {
			continue
		}
		if [DisplacementSize]byte(code[offset:offset+DisplacementSize]) == want {
			return offset, true
		}
	}
	return 0, false
}
