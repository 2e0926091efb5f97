package bytecode

import "testing"

func TestInstructionPacking(t *testing.T) {
	inst := Make(OpConstant, 0x123456)
	if inst.Op() != OpConstant {
		t.Errorf("opcode = %v, want CONSTANT", inst.Op())
	}
	if inst.Operand() != 0x123456 {
		t.Errorf("operand = %#x, want 0x123456", inst.Operand())
	}

	// Operands are masked to 24 bits.
	inst = Make(OpJumpForward, 0xFF_FFFFFF)
	if inst.Operand() != MaxOperand {
		t.Errorf("operand = %#x, want %#x", inst.Operand(), uint32(MaxOperand))
	}
	if inst.Op() != OpJumpForward {
		t.Errorf("opcode corrupted by oversized operand")
	}
}

func TestChunkConstantDeduplication(t *testing.T) {
	var c Chunk
	first := c.AddConstant(IntValue(42))
	second := c.AddConstant(IntValue(42))
	third := c.AddConstant(IntValue(7))
	if first != second {
		t.Errorf("identical int constants got indices %d and %d", first, second)
	}
	if third == first {
		t.Errorf("distinct constants share index %d", third)
	}

	f1 := c.AddConstant(FloatValue(1.5))
	f2 := c.AddConstant(FloatValue(1.5))
	if f1 != f2 {
		t.Errorf("identical float constants got indices %d and %d", f1, f2)
	}
}

func TestChunkStringDeduplication(t *testing.T) {
	var c Chunk
	a := c.AddString("hello")
	b := c.AddString("hello")
	if a != b {
		t.Errorf("identical strings got indices %d and %d", a, b)
	}
}

func TestLineRunEncoding(t *testing.T) {
	var c Chunk
	c.Emit(OpPushNull, 1)
	c.Emit(OpPop, 1)
	c.Emit(OpPushTrue, 2)
	c.Emit(OpPop, 2)
	c.Emit(OpHalt, 2)

	if len(c.LineRuns) != 2 {
		t.Fatalf("expected 2 runs, got %d: %+v", len(c.LineRuns), c.LineRuns)
	}
	for ip, want := range []int{1, 1, 2, 2, 2} {
		if got := c.Line(ip); got != want {
			t.Errorf("Line(%d) = %d, want %d", ip, got, want)
		}
	}
}

func TestEmitIndexedUsesExtArgPrefix(t *testing.T) {
	var c Chunk
	c.EmitIndexed(OpConstant, MaxOperand+5, 1)
	if len(c.Code) != 2 {
		t.Fatalf("expected EXT_ARG prefix plus instruction, got %d words", len(c.Code))
	}
	if c.Code[0].Op() != OpExtArg || c.Code[0].Operand() != 1 {
		t.Errorf("prefix = %v %d, want EXT_ARG 1", c.Code[0].Op(), c.Code[0].Operand())
	}
	if c.Code[1].Op() != OpConstant || c.Code[1].Operand() != 4 {
		t.Errorf("instruction = %v %d, want CONSTANT 4", c.Code[1].Op(), c.Code[1].Operand())
	}
}

func TestPatchKeepsOpcode(t *testing.T) {
	var c Chunk
	idx := c.EmitWith(OpJumpForward, 0, 1)
	c.Patch(idx, 17)
	if c.Code[idx].Op() != OpJumpForward || c.Code[idx].Operand() != 17 {
		t.Errorf("patched instruction = %v %d", c.Code[idx].Op(), c.Code[idx].Operand())
	}
}
