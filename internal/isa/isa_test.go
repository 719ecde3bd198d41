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

package isa

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		op, a1, a2, a3 int32
	}{
		{OpADD, 3, 4, 5},
		{OpADDI, 19, 0, -200},
		{OpLW, 8, 2, -1},
		{OpSW, 1, 2, 8191},
		{OpBEQ, 1, 2, -8192},
		{OpFIN, 0, 0, 0},
	}

	for _, c := range cases {
		word, err := Encode(c.op, c.a1, c.a2, c.a3)
		if err != nil {
			t.Fatalf("Encode(%d,%d,%d,%d): %v", c.op, c.a1, c.a2, c.a3, err)
		}
		op, a1, a2, a3 := Decode(word)
		if op != c.op || a1 != c.a1 || a2 != c.a2 || a3 != c.a3 {
			t.Fatalf("round trip mismatch: got (%d,%d,%d,%d), want (%d,%d,%d,%d)",
				op, a1, a2, a3, c.op, c.a1, c.a2, c.a3)
		}
	}
}

func TestEncodeRangeErrors(t *testing.T) {
	cases := []struct {
		name           string
		op, a1, a2, a3 int32
	}{
		{"opcode too big", 256, 0, 0, 0},
		{"opcode negative", -1, 0, 0, 0},
		{"arg1 too big", 0, 32, 0, 0},
		{"arg2 too big", 0, 0, 32, 0},
		{"arg3 too big", 0, 0, 0, 8192},
		{"arg3 too small", 0, 0, 0, -8193},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Encode(c.op, c.a1, c.a2, c.a3); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDecodeNegativeArg3(t *testing.T) {
	word := MustEncode(OpBNE, 1, 2, -3)
	_, _, _, a3 := Decode(word)
	if a3 != -3 {
		t.Fatalf("got a3=%d, want -3", a3)
	}
}

func TestNameUnknownOpcode(t *testing.T) {
	if Name(200) != "NOOP" {
		t.Fatalf("unknown opcode should decode as NOOP")
	}
}
