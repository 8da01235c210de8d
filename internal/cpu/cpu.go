// Package cpu implements the LR35902 interpreter: registers, the full
// documented opcode set plus CB-prefix, the three-state interrupt-master
// enable, HALT/HALT-bug/Stopped run-states, and interrupt dispatch.
package cpu

import "github.com/dmgcore/dmgcore/internal/savestate"

// Bus is the memory/IO surface the CPU drives. Board satisfies this.
type Bus interface {
	Read(addr uint16) byte
	Write(addr uint16, v byte)
	Tick(cycles int)
}

// imeState models the one-instruction-deferred effect of EI.
type imeState int

const (
	imeDisabled imeState = iota
	imeToBeEnabled
	imeEnabled
)

// runState tracks HALT/STOP/HALT-bug per spec.md §3.
type runState int

const (
	runRunning runState = iota
	runHalt
	runHaltBug
	runStopped
)

// CPU holds the LR35902 register file and run-state.
type CPU struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	ime imeState
	run runState

	board Bus
}

// New creates a CPU wired to board, PC at 0 (boot ROM entry point).
func New(board Bus) *CPU {
	return &CPU{board: board, SP: 0xFFFE, PC: 0x0000}
}

func (c *CPU) SetPC(pc uint16) { c.PC = pc }
func (c *CPU) Board() Bus      { return c.board }

// IsStopped reports whether an undefined opcode or STOP has halted
// execution with no modelled wake path.
func (c *CPU) IsStopped() bool { return c.run == runStopped }

// ResetAfterBoot sets registers to the values hardware leaves behind once
// the boot ROM hands control to the cartridge at 0x0100.
func (c *CPU) ResetAfterBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.ime = imeDisabled
	c.run = runRunning
}

const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F)) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = int16(a) < int16(b)
	return
}

func (c *CPU) sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < ((b & 0x0F) + ci)
	cy = int16(a) < int16(b)+int16(ci)
	return
}

func (c *CPU) and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	z = res == 0
	n, h, cy = false, true, false
	return
}

func (c *CPU) xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	z = res == 0
	return
}

func (c *CPU) or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	z = res == 0
	return
}

func (c *CPU) cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = c.sub8(a, b)
	return
}

// read8/write8 are the CPU's only bus-facing primitives: each one is a
// single M-cycle, so each ticks the board by 4 T-cycles immediately after
// the access completes. Every multi-byte helper below (fetch16, read16,
// write16, push16, pop16) is built out of these, so a multi-cycle
// instruction's later accesses always see Timer/PPU state that has been
// advanced by its own earlier accesses, not the state as of instruction
// start.
func (c *CPU) read8(addr uint16) byte {
	v := c.board.Read(addr)
	c.board.Tick(4)
	return v
}

func (c *CPU) write8(addr uint16, v byte) {
	c.board.Write(addr, v)
	c.board.Tick(4)
}

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | (hi << 8)
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v&0x00FF))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

// push16 writes the big-endian-stack order real hardware uses: high byte
// first at SP-1, low byte at SP-2. The two writes are separate M-cycles,
// each ticking the board on its own.
func (c *CPU) push16(v uint16) {
	c.SP--
	c.write8(c.SP, byte(v>>8))
	c.SP--
	c.write8(c.SP, byte(v))
}

func (c *CPU) pop16() uint16 {
	lo := uint16(c.read8(c.SP))
	c.SP++
	hi := uint16(c.read8(c.SP))
	c.SP++
	return lo | hi<<8
}

// serviceInterrupt dispatches the highest-priority pending, enabled
// interrupt (V-Blank > STAT > Timer > Serial > Joypad) and returns the
// 20-cycle cost, or 0 if nothing is pending. The 20 cycles break down as
// two internal decode cycles, the two push16 writes, and one internal
// cycle to load the vector into PC, matching real dispatch timing.
func (c *CPU) serviceInterrupt() int {
	ie := c.board.Read(0xFFFF)
	ifReg := c.board.Read(0xFF0F) & 0x1F
	pending := ie & ifReg
	if pending == 0 {
		return 0
	}
	c.board.Tick(8)
	var bit uint
	for bit = 0; bit < 5; bit++ {
		if pending&(1<<bit) != 0 {
			break
		}
	}
	c.board.Write(0xFF0F, (ifReg&^(1<<bit))&0x1F)
	c.ime = imeDisabled
	c.push16(c.PC)
	c.board.Tick(4)
	c.PC = 0x0040 + uint16(bit)*8
	return 20
}

// enterHalt implements spec.md §4.3's HALT semantics, including the
// HALT-bug path triggered when IME isn't actually enabled but an
// interrupt is already pending.
func (c *CPU) enterHalt() {
	ie := c.board.Read(0xFFFF)
	ifReg := c.board.Read(0xFF0F) & 0x1F
	pending := ie & ifReg & 0x1F
	switch {
	case c.ime == imeEnabled && pending != 0:
		c.run = runRunning
	case c.ime != imeEnabled && pending != 0:
		c.run = runHaltBug
	default:
		c.run = runHalt
	}
}

// Step decodes and executes one instruction (or services one interrupt,
// or idles one HALT/Stopped tick) and returns its T-cycle cost. Every
// T-cycle returned has already been ticked into the board as it was
// spent: read8/write8 tick their own M-cycle as each access happens, and
// the cases below add an explicit board.Tick for the internal-only
// cycles hardware spends with no bus access (branch decisions, the
// post-pop/post-fetch PC load, 16-bit register arithmetic). There is no
// single end-of-instruction catch-up tick.
func (c *CPU) Step() (cycles int) {
	// imeAtEntry is the IME state as of the start of this step, before
	// this step's own instruction can change it. A ToBeEnabled seen here
	// means EI ran last step: this step's instruction must still execute
	// untouched, and only once it's done does IME actually flip to
	// Enabled — hence the promotion happens in the defer, gated on the
	// entry value rather than whatever this step just set.
	imeAtEntry := c.ime

	defer func() {
		if imeAtEntry == imeToBeEnabled {
			c.ime = imeEnabled
		}
	}()

	if c.run == runStopped {
		c.board.Tick(4)
		return 4
	}

	if c.run == runHalt {
		ie := c.board.Read(0xFFFF)
		ifReg := c.board.Read(0xFF0F) & 0x1F
		if ie&ifReg != 0 {
			c.run = runRunning
		} else {
			c.board.Tick(4)
			return 4
		}
	}

	if imeAtEntry == imeEnabled {
		if cyc := c.serviceInterrupt(); cyc != 0 {
			return cyc
		}
	}

	var op byte
	if c.run == runHaltBug {
		op = c.read8(c.PC)
		c.run = runRunning
	} else {
		op = c.fetch8()
	}

	switch op {
	case 0x00: // NOP
		return 4

	case 0x10: // STOP
		// Hardware reads and discards the padding byte; this peek isn't a
		// full bus M-cycle on real silicon, so it bypasses read8's ticking.
		_ = c.board.Read(c.PC)
		c.PC++
		c.run = runStopped
		return 4

	case 0x06:
		c.B = c.fetch8()
		return 8
	case 0x0E:
		c.C = c.fetch8()
		return 8
	case 0x16:
		c.D = c.fetch8()
		return 8
	case 0x1E:
		c.E = c.fetch8()
		return 8
	case 0x26:
		c.H = c.fetch8()
		return 8
	case 0x2E:
		c.L = c.fetch8()
		return 8
	case 0x3E:
		c.A = c.fetch8()
		return 8

	case 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x47,
		0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4F,
		0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x57,
		0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5F,
		0x60, 0x61, 0x62, 0x63, 0x64, 0x65, 0x67,
		0x68, 0x69, 0x6A, 0x6B, 0x6C, 0x6D, 0x6F,
		0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7F:
		d := (op >> 3) & 7
		s := op & 7
		val := c.getReg(s)
		c.setReg(d, val)
		if d == 6 || s == 6 {
			return 8
		}
		return 4

	case 0x01:
		c.setBC(c.fetch16())
		return 12
	case 0x11:
		c.setDE(c.fetch16())
		return 12
	case 0x21:
		c.setHL(c.fetch16())
		return 12
	case 0x31:
		c.SP = c.fetch16()
		return 12
	case 0x08:
		addr := c.fetch16()
		c.write16(addr, c.SP)
		return 20

	case 0x36:
		v := c.fetch8()
		c.write8(c.getHL(), v)
		return 12

	case 0x02:
		c.write8(c.getBC(), c.A)
		return 8
	case 0x12:
		c.write8(c.getDE(), c.A)
		return 8
	case 0x0A:
		c.A = c.read8(c.getBC())
		return 8
	case 0x1A:
		c.A = c.read8(c.getDE())
		return 8

	case 0x22:
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl + 1)
		return 8
	case 0x2A:
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl + 1)
		return 8
	case 0x32:
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl - 1)
		return 8
	case 0x3A:
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl - 1)
		return 8

	case 0xE0:
		n := uint16(c.fetch8())
		c.write8(0xFF00+n, c.A)
		return 12
	case 0xF0:
		n := uint16(c.fetch8())
		c.A = c.read8(0xFF00 + n)
		return 12

	case 0x07: // RLCA
		cval := (c.A >> 7) & 1
		c.A = (c.A << 1) | cval
		c.setZNHC(false, false, false, cval == 1)
		return 4
	case 0x0F: // RRCA
		cval := c.A & 1
		c.A = (c.A >> 1) | (cval << 7)
		c.setZNHC(false, false, false, cval == 1)
		return 4
	case 0x17: // RLA
		cval := (c.A >> 7) & 1
		carry := byte(0)
		if c.F&flagC != 0 {
			carry = 1
		}
		c.A = (c.A << 1) | carry
		c.setZNHC(false, false, false, cval == 1)
		return 4
	case 0x1F: // RRA
		cval := c.A & 1
		carry := byte(0)
		if c.F&flagC != 0 {
			carry = 1
		}
		c.A = (c.A >> 1) | (carry << 7)
		c.setZNHC(false, false, false, cval == 1)
		return 4
	case 0x27: // DAA
		a := c.A
		cf := c.F&flagC != 0
		if c.F&flagN == 0 {
			if cf || a > 0x99 {
				a += 0x60
				cf = true
			}
			if c.F&flagH != 0 || (a&0x0F) > 9 {
				a += 0x06
			}
		} else {
			if cf {
				a -= 0x60
			}
			if c.F&flagH != 0 {
				a -= 0x06
			}
		}
		c.A = a
		c.setZNHC(c.A == 0, c.F&flagN != 0, false, cf)
		return 4
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = (c.F & (flagZ | flagC)) | flagN | flagH
		return 4
	case 0x37: // SCF
		c.F = (c.F & flagZ) | flagC
		return 4
	case 0x3F: // CCF
		c.F = (c.F & (flagZ | flagC)) ^ flagC
		return 4

	case 0xE2:
		c.write8(0xFF00+uint16(c.C), c.A)
		return 8
	case 0xF2:
		c.A = c.read8(0xFF00 + uint16(c.C))
		return 8

	case 0x04:
		c.B = c.inc(c.B)
		return 4
	case 0x0C:
		c.C = c.inc(c.C)
		return 4
	case 0x14:
		c.D = c.inc(c.D)
		return 4
	case 0x1C:
		c.E = c.inc(c.E)
		return 4
	case 0x24:
		c.H = c.inc(c.H)
		return 4
	case 0x2C:
		c.L = c.inc(c.L)
		return 4
	case 0x3C:
		c.A = c.inc(c.A)
		return 4
	case 0x34:
		addr := c.getHL()
		c.write8(addr, c.inc(c.read8(addr)))
		return 12

	case 0x05:
		c.B = c.dec(c.B)
		return 4
	case 0x0D:
		c.C = c.dec(c.C)
		return 4
	case 0x15:
		c.D = c.dec(c.D)
		return 4
	case 0x1D:
		c.E = c.dec(c.E)
		return 4
	case 0x25:
		c.H = c.dec(c.H)
		return 4
	case 0x2D:
		c.L = c.dec(c.L)
		return 4
	case 0x3D:
		c.A = c.dec(c.A)
		return 4
	case 0x35:
		addr := c.getHL()
		c.write8(addr, c.dec(c.read8(addr)))
		return 12

	case 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x87:
		r, z, n, h, cy := c.add8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 4
	case 0x88, 0x89, 0x8A, 0x8B, 0x8C, 0x8D, 0x8F:
		r, z, n, h, cy := c.adc8(c.A, c.getReg(op&7), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 4
	case 0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x97:
		r, z, n, h, cy := c.sub8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 4
	case 0x98, 0x99, 0x9A, 0x9B, 0x9C, 0x9D, 0x9F:
		r, z, n, h, cy := c.sbc8(c.A, c.getReg(op&7), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 4
	case 0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA7:
		r, z, n, h, cy := c.and8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 4
	case 0xA8, 0xA9, 0xAA, 0xAB, 0xAC, 0xAD, 0xAF:
		r, z, n, h, cy := c.xor8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 4
	case 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB7:
		r, z, n, h, cy := c.or8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 4
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBF:
		z, n, h, cy := c.cp8(c.A, c.getReg(op&7))
		c.setZNHC(z, n, h, cy)
		return 4

	case 0x86:
		r, z, n, h, cy := c.add8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0x8E:
		r, z, n, h, cy := c.adc8(c.A, c.read8(c.getHL()), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0x96:
		r, z, n, h, cy := c.sub8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0x9E:
		r, z, n, h, cy := c.sbc8(c.A, c.read8(c.getHL()), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xA6:
		r, z, n, h, cy := c.and8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xAE:
		r, z, n, h, cy := c.xor8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xB6:
		r, z, n, h, cy := c.or8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xBE:
		z, n, h, cy := c.cp8(c.A, c.read8(c.getHL()))
		c.setZNHC(z, n, h, cy)
		return 8

	case 0xC6:
		r, z, n, h, cy := c.add8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xCE:
		r, z, n, h, cy := c.adc8(c.A, c.fetch8(), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xD6:
		r, z, n, h, cy := c.sub8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xDE:
		r, z, n, h, cy := c.sbc8(c.A, c.fetch8(), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xE6:
		r, z, n, h, cy := c.and8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xEE:
		r, z, n, h, cy := c.xor8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xF6:
		r, z, n, h, cy := c.or8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 8
	case 0xFE:
		z, n, h, cy := c.cp8(c.A, c.fetch8())
		c.setZNHC(z, n, h, cy)
		return 8

	case 0xEA:
		addr := c.fetch16()
		c.write8(addr, c.A)
		return 16
	case 0xFA:
		addr := c.fetch16()
		c.A = c.read8(addr)
		return 16

	case 0xC3:
		addr := c.fetch16()
		c.board.Tick(4) // internal cycle to load the fetched address into PC
		c.PC = addr
		return 16
	case 0xE9:
		c.PC = c.getHL()
		return 4
	case 0x18:
		off := int8(c.fetch8())
		c.board.Tick(4) // internal cycle to add the offset into PC
		c.PC = uint16(int32(c.PC) + int32(off))
		return 12

	case 0x20:
		off := int8(c.fetch8())
		if c.F&flagZ == 0 {
			c.board.Tick(4)
			c.PC = uint16(int32(c.PC) + int32(off))
			return 12
		}
		return 8
	case 0x28:
		off := int8(c.fetch8())
		if c.F&flagZ != 0 {
			c.board.Tick(4)
			c.PC = uint16(int32(c.PC) + int32(off))
			return 12
		}
		return 8
	case 0x30:
		off := int8(c.fetch8())
		if c.F&flagC == 0 {
			c.board.Tick(4)
			c.PC = uint16(int32(c.PC) + int32(off))
			return 12
		}
		return 8
	case 0x38:
		off := int8(c.fetch8())
		if c.F&flagC != 0 {
			c.board.Tick(4)
			c.PC = uint16(int32(c.PC) + int32(off))
			return 12
		}
		return 8

	case 0xCD:
		addr := c.fetch16()
		c.board.Tick(4) // internal cycle before the stack is touched
		c.push16(c.PC)
		c.PC = addr
		return 24
	case 0xC9:
		pc := c.pop16()
		c.board.Tick(4) // internal cycle to load PC from the popped value
		c.PC = pc
		return 16
	case 0xD9:
		pc := c.pop16()
		c.board.Tick(4)
		c.PC = pc
		c.ime = imeEnabled
		return 16

	case 0xC7:
		c.board.Tick(4)
		c.push16(c.PC)
		c.PC = 0x00
		return 16
	case 0xCF:
		c.board.Tick(4)
		c.push16(c.PC)
		c.PC = 0x08
		return 16
	case 0xD7:
		c.board.Tick(4)
		c.push16(c.PC)
		c.PC = 0x10
		return 16
	case 0xDF:
		c.board.Tick(4)
		c.push16(c.PC)
		c.PC = 0x18
		return 16
	case 0xE7:
		c.board.Tick(4)
		c.push16(c.PC)
		c.PC = 0x20
		return 16
	case 0xEF:
		c.board.Tick(4)
		c.push16(c.PC)
		c.PC = 0x28
		return 16
	case 0xF7:
		c.board.Tick(4)
		c.push16(c.PC)
		c.PC = 0x30
		return 16
	case 0xFF:
		c.board.Tick(4)
		c.push16(c.PC)
		c.PC = 0x38
		return 16

	case 0xC4:
		addr := c.fetch16()
		if c.F&flagZ == 0 {
			c.board.Tick(4)
			c.push16(c.PC)
			c.PC = addr
			return 24
		}
		return 12
	case 0xCC:
		addr := c.fetch16()
		if c.F&flagZ != 0 {
			c.board.Tick(4)
			c.push16(c.PC)
			c.PC = addr
			return 24
		}
		return 12
	case 0xD4:
		addr := c.fetch16()
		if c.F&flagC == 0 {
			c.board.Tick(4)
			c.push16(c.PC)
			c.PC = addr
			return 24
		}
		return 12
	case 0xDC:
		addr := c.fetch16()
		if c.F&flagC != 0 {
			c.board.Tick(4)
			c.push16(c.PC)
			c.PC = addr
			return 24
		}
		return 12

	case 0xC0:
		c.board.Tick(4) // internal condition-check cycle
		if c.F&flagZ == 0 {
			pc := c.pop16()
			c.board.Tick(4)
			c.PC = pc
			return 20
		}
		return 8
	case 0xC8:
		c.board.Tick(4)
		if c.F&flagZ != 0 {
			pc := c.pop16()
			c.board.Tick(4)
			c.PC = pc
			return 20
		}
		return 8
	case 0xD0:
		c.board.Tick(4)
		if c.F&flagC == 0 {
			pc := c.pop16()
			c.board.Tick(4)
			c.PC = pc
			return 20
		}
		return 8
	case 0xD8:
		c.board.Tick(4)
		if c.F&flagC != 0 {
			pc := c.pop16()
			c.board.Tick(4)
			c.PC = pc
			return 20
		}
		return 8

	case 0xC2:
		addr := c.fetch16()
		if c.F&flagZ == 0 {
			c.board.Tick(4)
			c.PC = addr
			return 16
		}
		return 12
	case 0xCA:
		addr := c.fetch16()
		if c.F&flagZ != 0 {
			c.board.Tick(4)
			c.PC = addr
			return 16
		}
		return 12
	case 0xD2:
		addr := c.fetch16()
		if c.F&flagC == 0 {
			c.board.Tick(4)
			c.PC = addr
			return 16
		}
		return 12
	case 0xDA:
		addr := c.fetch16()
		if c.F&flagC != 0 {
			c.board.Tick(4)
			c.PC = addr
			return 16
		}
		return 12

	case 0x03:
		c.setBC(c.getBC() + 1)
		c.board.Tick(4)
		return 8
	case 0x13:
		c.setDE(c.getDE() + 1)
		c.board.Tick(4)
		return 8
	case 0x23:
		c.setHL(c.getHL() + 1)
		c.board.Tick(4)
		return 8
	case 0x33:
		c.SP++
		c.board.Tick(4)
		return 8
	case 0x0B:
		c.setBC(c.getBC() - 1)
		c.board.Tick(4)
		return 8
	case 0x1B:
		c.setDE(c.getDE() - 1)
		c.board.Tick(4)
		return 8
	case 0x2B:
		c.setHL(c.getHL() - 1)
		c.board.Tick(4)
		return 8
	case 0x3B:
		c.SP--
		c.board.Tick(4)
		return 8
	case 0x09:
		c.addHL(c.getBC())
		c.board.Tick(4)
		return 8
	case 0x19:
		c.addHL(c.getDE())
		c.board.Tick(4)
		return 8
	case 0x29:
		c.addHL(c.getHL())
		c.board.Tick(4)
		return 8
	case 0x39:
		c.addHL(c.SP)
		c.board.Tick(4)
		return 8

	case 0xF8:
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		c.board.Tick(4)
		c.setHL(uint16(int32(int16(c.SP)) + int32(off)))
		c.setZNHC(false, false, h, cy)
		return 12
	case 0xF9:
		c.SP = c.getHL()
		c.board.Tick(4)
		return 8
	case 0xE8:
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		c.board.Tick(8)
		c.SP = uint16(int32(int16(c.SP)) + int32(off))
		c.setZNHC(false, false, h, cy)
		return 16

	case 0xF3: // DI
		c.ime = imeDisabled
		return 4
	case 0xFB: // EI
		c.ime = imeToBeEnabled
		return 4

	case 0xCB:
		return c.stepCB()

	case 0xF5:
		c.board.Tick(4)
		c.push16(c.getAF())
		return 16
	case 0xC5:
		c.board.Tick(4)
		c.push16(c.getBC())
		return 16
	case 0xD5:
		c.board.Tick(4)
		c.push16(c.getDE())
		return 16
	case 0xE5:
		c.board.Tick(4)
		c.push16(c.getHL())
		return 16
	case 0xF1:
		c.setAF(c.pop16())
		return 12
	case 0xC1:
		c.setBC(c.pop16())
		return 12
	case 0xD1:
		c.setDE(c.pop16())
		return 12
	case 0xE1:
		c.setHL(c.pop16())
		return 12

	case 0x76: // HALT
		c.enterHalt()
		return 4

	default:
		// Undefined opcode: hardware locks up. Not reported as an error.
		c.run = runStopped
		return 4
	}
}

func (c *CPU) inc(v byte) byte {
	old := v
	v++
	c.setZNHC(v == 0, false, old&0x0F == 0x0F, c.F&flagC != 0)
	return v
}

func (c *CPU) dec(v byte) byte {
	old := v
	v--
	c.setZNHC(v == 0, true, old&0x0F == 0x00, c.F&flagC != 0)
	return v
}

func (c *CPU) addHL(operand uint16) {
	hl := c.getHL()
	r := uint32(hl) + uint32(operand)
	h := (hl&0x0FFF)+(operand&0x0FFF) > 0x0FFF
	c.setHL(uint16(r))
	c.setZNHC(c.F&flagZ != 0, false, h, r > 0xFFFF)
}

// getReg/setReg map an opcode's 3-bit register field to B,C,D,E,H,L,(HL),A.
func (c *CPU) getReg(idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.getHL())
	default:
		return c.A
	}
}

func (c *CPU) setReg(idx byte, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.getHL(), v)
	default:
		c.A = v
	}
}

// Encode appends the register file, IME state, and run-state, in the
// field order declared in spec.md §3.
func (c *CPU) Encode(w *savestate.Writer) {
	w.U8(c.A)
	w.U8(c.F)
	w.U8(c.B)
	w.U8(c.C)
	w.U8(c.D)
	w.U8(c.E)
	w.U8(c.H)
	w.U8(c.L)
	w.U16(c.SP)
	w.U16(c.PC)
	w.U8(byte(c.ime))
	w.U8(byte(c.run))
}

// Decode restores state written by Encode.
func (c *CPU) Decode(r *savestate.Reader) error {
	fields := []*byte{&c.A, &c.F, &c.B, &c.C, &c.D, &c.E, &c.H, &c.L}
	for _, f := range fields {
		v, err := r.U8()
		if err != nil {
			return err
		}
		*f = v
	}
	sp, err := r.U16()
	if err != nil {
		return err
	}
	pc, err := r.U16()
	if err != nil {
		return err
	}
	c.SP, c.PC = sp, pc
	ime, err := r.U8()
	if err != nil {
		return err
	}
	run, err := r.U8()
	if err != nil {
		return err
	}
	c.ime = imeState(ime)
	c.run = runState(run)
	return nil
}

// stepCB executes a CB-prefixed instruction. The 0xCB byte itself was
// already fetched (and ticked) by the caller; this fetches the second
// byte and, for (HL) operands, performs the read (and write-back, for
// every group but BIT) through the same ticking read8/write8 used
// elsewhere, so cycles always equals what was actually ticked: 8 for a
// register operand, 12 for BIT y,(HL) (read-only), 16 for every other
// (HL) operand (read then write-back).
func (c *CPU) stepCB() int {
	cb := c.fetch8()
	reg := cb & 7
	opg := (cb >> 6) & 3
	y := (cb >> 3) & 7

	cycles := 8
	if reg == 6 {
		if opg == 1 {
			cycles = 12
		} else {
			cycles = 16
		}
	}

	switch opg {
	case 0:
		v := c.getReg(reg)
		var cflag byte
		switch y {
		case 0: // RLC
			cflag = (v >> 7) & 1
			v = (v << 1) | cflag
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 1: // RRC
			cflag = v & 1
			v = (v >> 1) | (cflag << 7)
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 2: // RL
			cflag = (v >> 7) & 1
			cin := byte(0)
			if c.F&flagC != 0 {
				cin = 1
			}
			v = (v << 1) | cin
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 3: // RR
			cflag = v & 1
			cin := byte(0)
			if c.F&flagC != 0 {
				cin = 1
			}
			v = (v >> 1) | (cin << 7)
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 4: // SLA
			cflag = (v >> 7) & 1
			v <<= 1
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 5: // SRA
			cflag = v & 1
			v = (v >> 1) | (v & 0x80)
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 6: // SWAP
			v = (v << 4) | (v >> 4)
			c.setZNHC(v == 0, false, false, false)
		case 7: // SRL
			cflag = v & 1
			v >>= 1
			c.setZNHC(v == 0, false, false, cflag == 1)
		}
		c.setReg(reg, v)
	case 1: // BIT y,r
		v := c.getReg(reg)
		bit := (v >> y) & 1
		c.F = (c.F & flagC) | flagH
		if bit == 0 {
			c.F |= flagZ
		}
	case 2: // RES y,r
		v := c.getReg(reg)
		c.setReg(reg, v&^(1<<y))
	case 3: // SET y,r
		v := c.getReg(reg)
		c.setReg(reg, v|(1<<y))
	}
	return cycles
}
