package cpu_test

import (
	"testing"

	"github.com/dmgcore/dmgcore/internal/cpu"
)

// fakeBus is a flat 64KiB address space with interrupt registers at their
// real addresses, just enough to drive the interpreter in isolation.
type fakeBus struct {
	mem [0x10000]byte
}

func (b *fakeBus) Read(addr uint16) byte     { return b.mem[addr] }
func (b *fakeBus) Write(addr uint16, v byte) { b.mem[addr] = v }
func (b *fakeBus) Tick(cycles int)           {}

func newTest(program []byte) (*cpu.CPU, *fakeBus) {
	b := &fakeBus{}
	copy(b.mem[0x0100:], program)
	c := cpu.New(b)
	c.SetPC(0x0100)
	return c, b
}

func run(c *cpu.CPU, n int) (cycles int) {
	for i := 0; i < n; i++ {
		cycles += c.Step()
	}
	return
}

func TestS1_LDAImmThenNOP(t *testing.T) {
	c, _ := newTest([]byte{0x3E, 0x42, 0x00})
	cycles := run(c, 2)
	if c.A != 0x42 {
		t.Fatalf("A = %#02x, want 0x42", c.A)
	}
	if c.PC != 0x0103 {
		t.Fatalf("PC = %#04x, want 0x0103", c.PC)
	}
	if cycles != 12 {
		t.Fatalf("cycles = %d, want 12", cycles)
	}
}

func TestS2_LDBIncB(t *testing.T) {
	c, _ := newTest([]byte{0x06, 0x05, 0x04})
	cycles := run(c, 2)
	if c.B != 6 {
		t.Fatalf("B = %d, want 6", c.B)
	}
	if c.F&0xE0 != 0 {
		t.Fatalf("flags = %#02x, want Z=N=H=0", c.F)
	}
	if cycles != 12 {
		t.Fatalf("cycles = %d, want 12", cycles)
	}
}

func TestS3_XorA(t *testing.T) {
	c, _ := newTest([]byte{0xAF})
	cycles := run(c, 1)
	if c.A != 0 || c.F != 0x80 {
		t.Fatalf("A=%#02x F=%#02x, want A=0 F=0x80", c.A, c.F)
	}
	if cycles != 4 {
		t.Fatalf("cycles = %d, want 4", cycles)
	}
}

func TestS4_AddCToA(t *testing.T) {
	c, _ := newTest([]byte{0x0E, 0x10, 0x3E, 0x05, 0x81})
	cycles := run(c, 3)
	if c.A != 0x15 {
		t.Fatalf("A = %#02x, want 0x15", c.A)
	}
	if c.F != 0x00 {
		t.Fatalf("F = %#02x, want 0x00", c.F)
	}
	if cycles != 20 {
		t.Fatalf("cycles = %d, want 20", cycles)
	}
}

func TestLDa16AAndBack(t *testing.T) {
	c, b := newTest([]byte{0x3E, 0x7A, 0xEA, 0x00, 0xC1, 0xFA, 0x00, 0xC1})
	run(c, 2) // LD A,0x7A ; LD (0xC100),A
	if got := b.Read(0xC100); got != 0x7A {
		t.Fatalf("mem[0xC100] = %#02x, want 0x7A", got)
	}
	c.A = 0
	run(c, 1)
	if c.A != 0x7A {
		t.Fatalf("A = %#02x after LD A,(a16), want 0x7A", c.A)
	}
}

func TestJPAndJR(t *testing.T) {
	c, _ := newTest([]byte{0xC3, 0x05, 0x01, 0x00, 0x00, 0x18, 0x01, 0x00, 0x3E, 0x09})
	run(c, 1) // JP 0x0105
	if c.PC != 0x0105 {
		t.Fatalf("PC after JP = %#04x, want 0x0105", c.PC)
	}
	run(c, 1) // JR +1 -> 0x0108
	if c.PC != 0x0108 {
		t.Fatalf("PC after JR = %#04x, want 0x0108", c.PC)
	}
	run(c, 1)
	if c.A != 0x09 {
		t.Fatalf("A = %#02x, want 0x09", c.A)
	}
}

func TestCallAndRet(t *testing.T) {
	c, _ := newTest([]byte{0xCD, 0x05, 0x01, 0x00, 0x00, 0x3E, 0x11, 0xC9})
	run(c, 1) // CALL 0x0105
	if c.PC != 0x0105 {
		t.Fatalf("PC after CALL = %#04x, want 0x0105", c.PC)
	}
	run(c, 2) // LD A,0x11 ; RET
	if c.A != 0x11 {
		t.Fatalf("A = %#02x, want 0x11", c.A)
	}
	if c.PC != 0x0103 {
		t.Fatalf("PC after RET = %#04x, want 0x0103", c.PC)
	}
}

// Undefined opcode 0xFD Stopped - failure mode per spec.md §7/§9.
func TestUndefinedOpcodeEntersStopped(t *testing.T) {
	c, _ := newTest([]byte{0xFD, 0x3E, 0x01})
	run(c, 1)
	if !c.IsStopped() {
		t.Fatalf("expected Stopped after undefined opcode")
	}
	pcAfter := c.PC
	run(c, 3)
	if c.PC != pcAfter {
		t.Fatalf("PC advanced after entering Stopped: %#04x -> %#04x", pcAfter, c.PC)
	}
	if c.A != 0 {
		t.Fatalf("A changed after Stopped, subsequent bytes should not execute")
	}
}

func TestSTOPEntersStoppedAndConsumesPadding(t *testing.T) {
	c, _ := newTest([]byte{0x10, 0x00, 0x3E, 0x01})
	run(c, 1)
	if !c.IsStopped() {
		t.Fatalf("expected Stopped after STOP")
	}
	if c.PC != 0x0102 {
		t.Fatalf("PC = %#04x, want 0x0102 (STOP consumes one padding byte)", c.PC)
	}
}

// HALT with IME disabled and a pending, enabled interrupt triggers the
// HALT bug: the byte at PC executes twice because PC fails to advance on
// the next fetch.
func TestHaltBugDuplicatesNextInstruction(t *testing.T) {
	c, b := newTest([]byte{0x76, 0x3C, 0x3C})
	b.mem[0xFFFF] = 0x01 // IE: VBlank enabled
	b.mem[0xFF0F] = 0x01 // IF: VBlank pending
	// IME left Disabled: HALT bug path.
	run(c, 1) // HALT -> run-state HaltBug
	if c.A != 0 {
		t.Fatalf("A changed during HALT itself")
	}
	run(c, 1) // first INC A: PC does not advance past it
	if c.A != 1 {
		t.Fatalf("A = %d after first post-HALT-bug step, want 1", c.A)
	}
	run(c, 1) // same INC A byte executes again
	if c.A != 2 {
		t.Fatalf("A = %d after second step, want 2 (HALT bug re-executed the opcode)", c.A)
	}
}

// HALT with no pending interrupt parks the CPU until IF&IE becomes
// nonzero; Step() idles at 4 cycles per call in the meantime.
func TestHaltWaitsForPendingInterrupt(t *testing.T) {
	c, b := newTest([]byte{0x76, 0x3C})
	cyc := run(c, 1)
	if cyc != 4 {
		t.Fatalf("HALT cycles = %d, want 4", cyc)
	}
	for i := 0; i < 5; i++ {
		run(c, 1)
	}
	if c.A != 0 {
		t.Fatalf("A changed while halted with nothing pending")
	}
	b.mem[0xFFFF] = 0x01
	b.mem[0xFF0F] = 0x01
	run(c, 1) // wakes, executes INC A
	if c.A != 1 {
		t.Fatalf("A = %d after wake, want 1", c.A)
	}
}

// EI's effect is deferred by one instruction; DI is immediate.
func TestEIIsDeferredByOneInstruction(t *testing.T) {
	// EI ; NOP ; NOP, with VBlank already pending and enabled throughout.
	c, b := newTest([]byte{0xFB, 0x00, 0x00, 0x00})
	b.mem[0xFFFF] = 0x01
	b.mem[0xFF0F] = 0x01
	run(c, 1) // EI: IME -> ToBeEnabled, no dispatch this step
	if c.PC != 0x0101 {
		t.Fatalf("PC after EI = %#04x, want 0x0101 (no interrupt serviced yet)", c.PC)
	}
	run(c, 1) // NOP completes; IME becomes Enabled *after* this step
	if c.PC != 0x0102 {
		t.Fatalf("PC after first NOP = %#04x, want 0x0102", c.PC)
	}
	run(c, 1) // now IME is Enabled: this Step should dispatch, not fetch the NOP at 0x0102
	if c.PC != 0x0040 {
		t.Fatalf("PC after dispatch = %#04x, want 0x0040 (VBlank vector)", c.PC)
	}
	if b.mem[0xFF0F]&0x01 != 0 {
		t.Fatalf("IF VBlank bit not cleared by dispatch")
	}
}

func TestDIIsImmediate(t *testing.T) {
	c, b := newTest([]byte{0xF3, 0x00})
	b.mem[0xFFFF] = 0x01
	b.mem[0xFF0F] = 0x01
	run(c, 2)
	if c.PC != 0x0102 {
		t.Fatalf("PC = %#04x, want 0x0102 (DI must prevent dispatch)", c.PC)
	}
}

func TestInterruptDispatchPriority(t *testing.T) {
	// EI, then both Timer (bit 2) and VBlank (bit 0) pending: VBlank wins.
	c, b := newTest([]byte{0xFB, 0x00})
	b.mem[0xFFFF] = 0x05
	b.mem[0xFF0F] = 0x05
	run(c, 3)
	if c.PC != 0x0040 {
		t.Fatalf("PC = %#04x, want 0x0040 (VBlank must take priority over Timer)", c.PC)
	}
	if b.mem[0xFF0F]&0x01 != 0 {
		t.Fatalf("VBlank bit not cleared")
	}
	if b.mem[0xFF0F]&0x04 == 0 {
		t.Fatalf("Timer bit incorrectly cleared alongside VBlank")
	}
}
