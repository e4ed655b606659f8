package sqlc

import "fmt"

// allocateRegister returns the starting local offset in the current
// frame for count contiguous registers (§4.1). Offsets 0 and 1 are
// reserved for the return address and saved frame pointer, so locals
// begin at 2.
func (c *compiler) allocateRegister(count int) int {
	if count <= 0 {
		count = 1
	}
	f := c.currentFrame()
	base := f.nextOffset
	f.nextOffset += count
	if f.nextOffset > f.maxOffset {
		f.maxOffset = f.nextOffset
	}
	if f.nextOffset > c.numRegisters {
		c.numRegisters = f.nextOffset
	}
	return base
}

// allocateCursor returns a monotonically increasing cursor id, unique
// across the whole compilation (§4.1).
func (c *compiler) allocateCursor() int {
	id := c.nextCursor
	c.nextCursor++
	return id
}

// addConstant appends a literal to the constant pool (no deduplication
// required per §4.1) and returns its stable index.
func (c *compiler) addConstant(lit Literal) int {
	c.constants = append(c.constants, lit)
	return len(c.constants) - 1
}

// activeBuffer returns the instruction slice emit() currently appends
// to: the main buffer at depth 0, the subroutine buffer otherwise
// (§3 "subroutine_depth").
func (c *compiler) activeBuffer() *[]Instruction {
	if c.subroutineDepth == 0 {
		return &c.mainBuf
	}
	return &c.subBuf
}

func (c *compiler) activeBufferID() bufferID {
	if c.subroutineDepth == 0 {
		return bufMain
	}
	return bufSubroutine
}

// emit appends one instruction to the active buffer and returns its
// address within that buffer.
func (c *compiler) emit(op Op, p1, p2, p3 int32, p4 P4Value, p5 uint16, comment string) int {
	buf := c.activeBuffer()
	*buf = append(*buf, Instruction{Op: op, P1: p1, P2: p2, P3: p3, P4: p4, P5: p5, Comment: comment})
	return len(*buf) - 1
}

func (c *compiler) emitSimple(op Op, p1, p2, p3 int32) int {
	return c.emit(op, p1, p2, p3, p4Null(), 0, "")
}

// allocateAddress returns a unique negative-identity placeholder and
// records the instruction index it is destined to patch along with the
// buffer the patched instructions live in (§4.1). Forward jumps never
// cross subroutine-buffer boundaries (§3 invariant), so the placeholder
// remembers which buffer it belongs to and resolve_address only scans
// that buffer.
func (c *compiler) allocateAddress(purpose string) Placeholder {
	c.nextPlaceholder++
	ph := Placeholder(-c.nextPlaceholder)
	c.placeholders[ph] = &pendingJump{purpose: purpose, buffer: c.activeBufferID()}
	return ph
}

// resolveAddress patches every prior instruction in the placeholder's
// owning buffer whose P2 equals the placeholder id to the buffer's
// current end, then forgets the placeholder. Resolving an id twice, or
// one never allocated, is an internal error: the compiler's own
// allocate_address/resolve_address pairing is the only source of truth.
func (c *compiler) resolveAddress(ph Placeholder) error {
	pending, ok := c.placeholders[ph]
	if !ok {
		return internalErrorf("resolve_address: placeholder %d already resolved or never allocated", ph)
	}

	var buf *[]Instruction
	switch pending.buffer {
	case bufMain:
		buf = &c.mainBuf
	case bufSubroutine:
		buf = &c.subBuf
	}
	target := int32(len(*buf))

	for i := range *buf {
		ins := &(*buf)[i]
		if jumpsOnP2[ins.Op] && ins.P2 == int32(ph) {
			ins.P2 = target
		}
	}

	delete(c.placeholders, ph)
	return nil
}

// startSubroutine switches emission into the subroutine buffer and
// opens a new frame, emitting a FrameEnter with a placeholder size that
// endSubroutine patches to max_local_offset_in_frame + 1 (§4.1, §4.4).
func (c *compiler) startSubroutine() int {
	c.subroutineDepth++
	c.frames = append(c.frames, &frameState{nextOffset: 2})
	addr := c.emit(OpFrameEnter, 0, 0, 0, p4Null(), 0, "")
	c.currentFrame().enterAddr = addr
	return addr
}

// endSubroutine patches the frame's FrameEnter.P1 to its high-water mark
// and pops back to the enclosing frame/buffer.
func (c *compiler) endSubroutine() {
	f := c.currentFrame()
	c.subBuf[f.enterAddr].P1 = int32(f.maxOffset + 1)
	c.frames = c.frames[:len(c.frames)-1]
	c.subroutineDepth--
}

// finalize appends the subroutine buffer after the main program (each
// separated by a final Halt, per §4.1) and checks that every placeholder
// was resolved. Cursor open/close balance is not checked.
func (c *compiler) finalize(columnNames []string) (*Program, error) {
	if len(c.placeholders) > 0 {
		for ph, pending := range c.placeholders {
			return nil, internalErrorf("unresolved placeholder %d (%s)", ph, pending.purpose)
		}
	}

	instructions := make([]Instruction, 0, len(c.mainBuf)+len(c.subBuf)+1)
	instructions = append(instructions, c.mainBuf...)
	instructions = append(instructions, Instruction{Op: OpHalt, Comment: "end of main program"})

	subOffset := len(instructions)
	instructions = append(instructions, c.subBuf...)

	if subOffset != len(c.mainBuf)+1 {
		return nil, internalErrorf("finalize: subroutine offset mismatch")
	}

	// subroutine-buffer jump targets were computed relative to subBuf;
	// rebase them now that subBuf is appended after the main Halt.
	for i := len(c.mainBuf) + 1; i < len(instructions); i++ {
		ins := &instructions[i]
		if jumpsOnP2[ins.Op] && ins.P2 >= 0 {
			ins.P2 += int32(subOffset)
		}
	}

	// Subroutine call targets are always recorded as subBuf-relative
	// addresses (see jumpsOnP2's comment), in either buffer; rebase every
	// one of them exactly once, here.
	for i := range instructions {
		if instructions[i].Op == OpSubroutine {
			instructions[i].P2 += int32(subOffset)
		}
	}

	prog := &Program{
		Instructions: instructions,
		Constants:    c.constants,
		NumRegisters: c.numRegisters,
		NumCursors:   c.nextCursor,
		Parameters:   c.parameters,
		ColumnNames:  columnNames,
		SQL:          c.sql,
		ID:           c.newUUID(),
	}
	return prog, nil
}

func (c *compiler) comment(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
