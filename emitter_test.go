package sqlc

import "testing"

func TestAllocateRegisterIsContiguousAndMonotonic(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	a := c.allocateRegister(3)
	b := c.allocateRegister(1)
	if b != a+3 {
		t.Fatalf("expected second allocation to start right after the first block, got a=%d b=%d", a, b)
	}
	if c.numRegisters != b+1 {
		t.Fatalf("numRegisters high-water mark not updated: got %d, want %d", c.numRegisters, b+1)
	}
}

func TestAllocateCursorIsUniqueAcrossCompile(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	seen := make(map[int]bool)
	for i := 0; i < 5; i++ {
		cur := c.allocateCursor()
		if seen[cur] {
			t.Fatalf("cursor id %d reused", cur)
		}
		seen[cur] = true
	}
}

func TestResolveAddressPatchesAllReferencingJumps(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	ph := c.allocateAddress("eof")
	c.emitSimple(OpRewind, 0, int32(ph), 0)
	c.emitSimple(OpIfTrue, 1, int32(ph), 0)
	c.emitSimple(OpNoop, 0, 0, 0)
	if err := c.resolveAddress(ph); err != nil {
		t.Fatalf("resolveAddress: %v", err)
	}
	want := int32(len(c.mainBuf))
	if c.mainBuf[0].P2 != want || c.mainBuf[1].P2 != want {
		t.Fatalf("expected both jumps patched to %d, got %d and %d", want, c.mainBuf[0].P2, c.mainBuf[1].P2)
	}
	if _, ok := c.placeholders[ph]; ok {
		t.Fatalf("placeholder %d should have been forgotten after resolving", ph)
	}
}

func TestResolveAddressTwiceIsInternalError(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	ph := c.allocateAddress("once")
	if err := c.resolveAddress(ph); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	err := c.resolveAddress(ph)
	if err == nil {
		t.Fatalf("expected resolving an already-resolved placeholder to fail")
	}
	ce, ok := err.(*CompileError)
	if !ok || ce.Kind != KindInternal {
		t.Fatalf("expected an InternalError, got %#v", err)
	}
}

func TestFinalizeFailsOnUnresolvedPlaceholder(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	c.allocateAddress("never resolved")
	_, err := c.finalize(nil)
	if err == nil {
		t.Fatalf("expected finalize to fail with an unresolved placeholder outstanding")
	}
}

func TestFinalizeConcatenatesMainAndSubroutineBuffersWithHalt(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	c.emitSimple(OpInteger, 1, 2, 0)

	c.startSubroutine()
	c.emitSimple(OpReturn, 0, 0, 0)
	c.endSubroutine()

	prog, err := c.finalize([]string{"x"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(prog.Instructions) != 4 {
		t.Fatalf("expected Integer, Halt, FrameEnter, Return (4 instructions), got %d", len(prog.Instructions))
	}
	if prog.Instructions[1].Op != OpHalt {
		t.Fatalf("expected instruction 1 to be Halt, got %s", prog.Instructions[1].Op)
	}
	if prog.Instructions[2].Op != OpFrameEnter {
		t.Fatalf("expected instruction 2 to be FrameEnter, got %s", prog.Instructions[2].Op)
	}
}

func TestStartSubroutinePatchesFrameEnterHighWaterMark(t *testing.T) {
	c := newCompiler(nil, "", Options{})
	c.startSubroutine()
	c.allocateRegister(4)
	enterAddr := c.currentFrame().enterAddr
	c.endSubroutine()
	if got := c.subBuf[enterAddr].P1; got != 7 {
		t.Fatalf("expected FrameEnter.P1 to be high-water-mark+1 (7), got %d", got)
	}
}
