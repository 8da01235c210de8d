package ppu

// Read serves CPU/Board access to VRAM, OAM, and the LCD registers.
// Callers are expected to have already called Update(clock) so the
// returned state reflects the current clock.
func (p *PPU) Read(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.vramBlocked() {
			return 0xFF
		}
		return p.VRAM[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.oamBlocked() {
			return 0xFF
		}
		return p.OAM[addr-0xFE00]
	case addr == 0xFF40:
		return p.LCDC
	case addr == 0xFF41:
		coincidence := byte(0)
		if p.lyForCompare >= 0 && byte(p.lyForCompare) == p.LYC {
			coincidence = 1
		}
		return 0x80 | p.statEnable | coincidence<<2 | p.mode
	case addr == 0xFF42:
		return p.SCY
	case addr == 0xFF43:
		return p.SCX
	case addr == 0xFF44:
		return p.LY
	case addr == 0xFF45:
		return p.LYC
	case addr == 0xFF47:
		return p.BGP
	case addr == 0xFF48:
		return p.OBP0
	case addr == 0xFF49:
		return p.OBP1
	case addr == 0xFF4A:
		return p.WY
	case addr == 0xFF4B:
		return p.WX
	default:
		return 0xFF
	}
}

// Write serves CPU/Board writes to VRAM, OAM, and the LCD registers. DMA
// (0xFF46) is handled by the Board, not here, since the PPU must stay a
// pure value with no back-reference into its owner.
func (p *PPU) Write(addr uint16, v byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if !p.vramBlocked() {
			p.VRAM[addr-0x8000] = v
		}
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if !p.oamBlocked() {
			p.OAM[addr-0xFE00] = v
		}
	case addr == 0xFF40:
		was := p.LCDC&0x80 != 0
		p.LCDC = v
		now := v&0x80 != 0
		if was && !now {
			p.mode = 0
			p.LY = 0
			p.lyForCompare = 0
			p.updateStat()
		}
	case addr == 0xFF41:
		p.statEnable = v & 0x78
	case addr == 0xFF42:
		p.SCY = v
	case addr == 0xFF43:
		p.SCX = v
	case addr == 0xFF44:
		// read-only
	case addr == 0xFF45:
		p.LYC = v
	case addr == 0xFF47:
		p.BGP = v
	case addr == 0xFF48:
		p.OBP0 = v
	case addr == 0xFF49:
		p.OBP1 = v
	case addr == 0xFF4A:
		p.WY = v
	case addr == 0xFF4B:
		p.WX = v
	}
}

// vramBlocked reports whether the CPU's view of VRAM is currently blocked
// by mode-3 access contention.
func (p *PPU) vramBlocked() bool {
	return p.LCDC&0x80 != 0 && p.mode == 3
}

// oamBlocked reports whether OAM is blocked by mode 2/3 access contention.
// There is no DMA-active blocking: the Board copies OAM DMA instantly.
func (p *PPU) oamBlocked() bool {
	return p.LCDC&0x80 != 0 && (p.mode == 2 || p.mode == 3)
}
