/*
 * RISC-V multicore simulator.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package isa implements the bespoke fixed-layout instruction encoding
// used by the simulator: a 32-bit word packing an opcode and three
// argument fields.
package isa

import "fmt"

// Field widths and shift positions, bit [0..7]=opcode, [8..12]=arg1,
// [13..17]=arg2, [18..31]=arg3 (signed).
const (
	maskOpcode uint32 = 0x000000FF
	maskArg1   uint32 = 0x00001F00
	maskArg2   uint32 = 0x0003E000
	maskArg3   uint32 = 0xFFFC0000

	shiftOpcode = 0
	shiftArg1   = 8
	shiftArg2   = 13
	shiftArg3   = 18

	insLength = 32
	arg3Bits  = insLength - shiftArg3
)

// Opcode values.
const (
	OpNoop = 0
	OpLW   = 5
	OpDIV  = 56
	OpADD  = 71
	OpMUL  = 72
	OpSUB  = 83
	OpSW   = 37
	OpLR   = 51
	OpSC   = 52
	OpADDI = 19
	OpBEQ  = 99
	OpBNE  = 100
	OpJALR = 103
	OpJAL  = 111
	OpFIN  = 255
)

// Decode splits a 32-bit instruction word into its four fields. Arg3 is
// sign-extended per its 14-bit two's-complement field.
func Decode(word uint32) (op, arg1, arg2 int32, arg3 int32) {
	op = int32((word & maskOpcode) >> shiftOpcode)
	arg1 = int32((word & maskArg1) >> shiftArg1)
	arg2 = int32((word & maskArg2) >> shiftArg2)

	raw := (word & maskArg3) >> shiftArg3
	if raw&(1<<(arg3Bits-1)) != 0 {
		arg3 = int32(raw) - (1 << arg3Bits)
	} else {
		arg3 = int32(raw)
	}
	return op, arg1, arg2, arg3
}

// Encode packs (op, arg1, arg2, arg3) into a 32-bit word. It returns an
// error if any field is out of range instead of panicking, since the
// only caller that can hand it bad data is the program-file loader.
func Encode(op, arg1, arg2, arg3 int32) (uint32, error) {
	if op < 0 || op >= 256 {
		return 0, fmt.Errorf("isa: opcode %d out of range [0,256)", op)
	}
	if arg1 < 0 || arg1 >= 32 {
		return 0, fmt.Errorf("isa: arg1 %d out of range [0,32)", arg1)
	}
	if arg2 < 0 || arg2 >= 32 {
		return 0, fmt.Errorf("isa: arg2 %d out of range [0,32)", arg2)
	}
	lo := int32(-(1 << (arg3Bits - 1)))
	hi := int32(1 << (arg3Bits - 1))
	if arg3 < lo || arg3 >= hi {
		return 0, fmt.Errorf("isa: arg3 %d out of range [%d,%d)", arg3, lo, hi)
	}

	word := uint32(op) & maskOpcode
	word |= (uint32(arg1) << shiftArg1) & maskArg1
	word |= (uint32(arg2) << shiftArg2) & maskArg2
	word |= (uint32(arg3) << shiftArg3) & maskArg3
	return word, nil
}

// MustEncode is Encode for callers on a path that has already validated
// its arguments (hand-assembled test fixtures, internal constants) and
// wants a hard panic instead of error plumbing on a logic bug.
func MustEncode(op, arg1, arg2, arg3 int32) uint32 {
	word, err := Encode(op, arg1, arg2, arg3)
	if err != nil {
		panic(err)
	}
	return word
}

// Name returns a human-readable mnemonic for an opcode, used in debug
// logging. Unknown opcodes execute as NOOP, so they render as one.
func Name(op int32) string {
	switch op {
	case OpNoop:
		return "NOOP"
	case OpLW:
		return "LW"
	case OpDIV:
		return "DIV"
	case OpADD:
		return "ADD"
	case OpMUL:
		return "MUL"
	case OpSUB:
		return "SUB"
	case OpSW:
		return "SW"
	case OpLR:
		return "LR"
	case OpSC:
		return "SC"
	case OpADDI:
		return "ADDI"
	case OpBEQ:
		return "BEQ"
	case OpBNE:
		return "BNE"
	case OpJALR:
		return "JALR"
	case OpJAL:
		return "JAL"
	case OpFIN:
		return "FIN"
	default:
		return "NOOP"
	}
}
