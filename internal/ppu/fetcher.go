package ppu

// tickFetcher advances the pixel fetcher by one dot. The fetcher only does
// work on every other dot (fetcherCycle toggles each call); a sprite fetch
// in progress takes over the shared step counter from a background fetch
// and, on completion, the background fetch restarts from step 0 — matching
// the real hardware quirk where a sprite fetch discards in-flight
// background fetch progress.
func (p *PPU) tickFetcher() {
	p.fetcherCycle = !p.fetcherCycle
	if !p.fetcherCycle {
		return
	}
	if p.spriteFetching {
		p.tickSpriteFetch()
		return
	}
	p.tickBGFetch()
}

func (p *PPU) tickBGFetch() {
	switch p.fetcherStep {
	case 0:
		inWindow := p.isInWindow
		var base uint16
		var tileX, tileY int
		if inWindow {
			if p.LCDC&0x40 != 0 {
				base = 0x9C00
			} else {
				base = 0x9800
			}
			tileX = p.fetcherX
			tileY = p.wyc / 8
		} else {
			if p.LCDC&0x08 != 0 {
				base = 0x9C00
			} else {
				base = 0x9800
			}
			tileX = (p.fetcherX + int(p.SCX)/8) & 31
			tileY = int(byte(int(p.LY)+int(p.SCY))) / 8
		}
		addr := base + uint16(tileY&31)*32 + uint16(tileX&31)
		p.fetchTileNumber = p.VRAM[addr-0x8000]
		p.fetcherStep = 1
	case 1:
		low, _ := p.bgTileRowAddr()
		p.fetchTileDataLow = p.VRAM[low-0x8000]
		p.fetcherStep = 2
	case 2:
		_, high := p.bgTileRowAddr()
		p.fetchTileDataHigh = p.VRAM[high-0x8000]
		if !p.fetcherSkippedFirstPush {
			p.fetcherSkippedFirstPush = true
			p.fetcherStep = 0
			return
		}
		p.fetcherStep = 3
	case 3:
		if p.bgFIFO.Len() != 0 {
			return
		}
		low, high := p.fetchTileDataLow, p.fetchTileDataHigh
		for bit := 7; bit >= 0; bit-- {
			lo := (low >> uint(bit)) & 1
			hi := (high >> uint(bit)) & 1
			p.bgFIFO.Push(lo | hi<<1)
		}
		p.fetcherX++
		p.fetcherStep = 0
	}
}

// bgTileRowAddr resolves the low/high tile-data byte addresses for the
// currently latched tile number, honouring LCDC bit 4's addressing mode.
func (p *PPU) bgTileRowAddr() (low, high uint16) {
	var rowOffset int
	if p.isInWindow {
		rowOffset = 2 * (p.wyc % 8)
	} else {
		rowOffset = 2 * (int(byte(int(p.LY)+int(p.SCY))) % 8)
	}
	var base int
	if p.LCDC&0x10 != 0 {
		base = 0x8000 + int(p.fetchTileNumber)*16
	} else {
		base = 0x9000 + int(int8(p.fetchTileNumber))*16
	}
	low = uint16(base + rowOffset)
	high = low + 1
	return
}

func (p *PPU) tickSpriteFetch() {
	s := p.currSprite
	height := 8
	if p.LCDC&0x04 != 0 {
		height = 16
	}
	py := int(p.LY) + 16 - int(s.sy)
	if s.flags&0x40 != 0 {
		py = height - 1 - py
	}
	switch p.fetcherStep {
	case 0:
		tile := s.tile
		if height == 16 {
			tile = (tile &^ 1) | byte(py/8)
		}
		p.fetchTileNumber = tile
		p.fetcherStep = 1
	case 1:
		addr := 0x8000 + int(p.fetchTileNumber)*16 + 2*(py%8)
		p.fetchTileDataLow = p.VRAM[addr-0x8000]
		p.fetcherStep = 2
	case 2:
		addr := 0x8000 + int(p.fetchTileNumber)*16 + 2*(py%8) + 1
		p.fetchTileDataHigh = p.VRAM[addr-0x8000]
		p.fetcherStep = 3
	case 3:
		low, high := p.fetchTileDataLow, p.fetchTileDataHigh
		if s.flags&0x20 != 0 {
			low = reverseBits(low)
			high = reverseBits(high)
		}
		cutOff := 0
		if int(s.sx) < 8 {
			cutOff = 8 - int(s.sx)
		}
		var bgPriority, palette byte
		if s.flags&0x80 != 0 {
			bgPriority = 1
		}
		if s.flags&0x10 != 0 {
			palette = 1
		}
		for i := cutOff; i < 8; i++ {
			bit := uint(7 - i)
			color := (low>>bit)&1 | (high>>bit)&1<<1
			packed := color | bgPriority<<2 | palette<<3
			slot := i - cutOff
			if slot < p.spriteFIFO.Len() {
				if p.spriteFIFO.At(slot)&0x03 == 0 {
					p.spriteFIFO.Set(slot, packed)
				}
			} else {
				p.spriteFIFO.Push(packed)
			}
		}
		p.spriteFetching = false
		p.fetcherStep = 0
	}
}
