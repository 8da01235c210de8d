// Package ppu implements the dot-cycle LCD controller: the OAM scanner, the
// two-FIFO pixel pipeline, and the STAT/LYC edge detector. It is a
// pull-style sub-machine — Update(clock) catches the PPU up to the given
// clock and returns the interrupt edges observed, rather than mutating a
// shared IF register directly (see internal/board for the owner).
package ppu

const (
	ScreenWidth  = 160
	ScreenHeight = 144
	dotsPerLine  = 456
	linesPerFrame = 154
	vblankStartLine = 144
)

// line-machine phases. Named for what they do, not for a position in any
// external numbering.
type phase int

const (
	phaseLineStart phase = iota
	phasePreOAM
	phaseOAM
	phaseDrawStart
	phaseDrawSetup
	phaseDraw
	phaseHBlankStart
	phaseLineEnd
	phaseVBlankLine
	phaseVBlank153
	phaseFrameWrap
)

// PPU holds all mutable LCD-controller state (spec.md §3's richest entity).
type PPU struct {
	VRAM [0x2000]byte
	OAM  [0xA0]byte
	Screen [ScreenWidth * ScreenHeight]byte

	LCDC, SCY, SCX, LY, LYC, BGP, OBP0, OBP1, WY, WX byte
	statEnable byte // bits 3-6 only, as last written by software

	mode byte // 0-3, STAT bits 0-1

	phase               phase
	nextClockCount      uint64
	lineStartClockCount uint64
	lcdWasOn            bool

	wyc         int
	reachWindow bool
	isInWindow  bool

	fetcherStep             int
	fetcherCycle            bool
	fetcherSkippedFirstPush bool
	spriteFetching          bool
	fetcherX                int
	fetchTileNumber         byte
	fetchTileDataLow        byte
	fetchTileDataHigh       byte
	currSprite              spriteEntry

	bgFIFO     fifo
	spriteFIFO fifo

	currX      int
	discarting int

	lyForCompare int // -1 means "do not compare this cycle"
	statSignal   bool

	spriteBuffer []spriteEntry

	vblank153Sub int // sub-step counter within the line-153 quirk sequence
}

// New returns a PPU in its cold-boot state: LCD off, everything zeroed.
func New() *PPU {
	p := &PPU{lyForCompare: -1}
	p.spriteBuffer = make([]spriteEntry, 0, maxSpritesPerLine)
	return p
}

// ResetAfterBoot matches the register values hardware leaves behind once
// the boot ROM hands off to the cartridge.
func (p *PPU) ResetAfterBoot(clock uint64) {
	p.LCDC = 0x91
	p.statEnable = 0x00
	p.BGP = 0xFC
	p.mode = 2
	p.LY = 0
	p.lyForCompare = 0
	p.phase = phaseOAM
	p.nextClockCount = clock
	p.lineStartClockCount = clock
	p.lcdWasOn = true
	p.oamScan()
	p.currX = 0
}

// Update advances the PPU from its last recorded position up to clock,
// running the line/dot state machine and accumulating interrupt edges.
// Callers must not pass a clock smaller than one already observed.
func (p *PPU) Update(clock uint64) (vblank, stat bool) {
	lcdOn := p.LCDC&0x80 != 0
	if !lcdOn {
		if p.lcdWasOn {
			p.mode = 0
			p.LY = 0
			p.lyForCompare = 0
			if p.updateStat() {
				stat = true
			}
		}
		p.lcdWasOn = false
		p.nextClockCount = clock
		return
	}
	if !p.lcdWasOn {
		// While off, nextClockCount tracks the last observed clock, which
		// is when the LCD was switched on.
		p.enable(p.nextClockCount)
	}
	p.lcdWasOn = true
	for p.nextClockCount <= clock {
		v, s := p.step()
		vblank = vblank || v
		stat = stat || s
	}
	return
}

// enable handles the LCDC bit 7 rising edge: LY=0, mode 0, restart the
// line machine from the top.
func (p *PPU) enable(clock uint64) {
	p.mode = 0
	p.LY = 0
	p.lyForCompare = -1
	p.phase = phaseLineStart
	p.nextClockCount = clock
	p.statSignal = false
}

// step executes one scheduled jump of the line/dot state machine and
// reports any interrupt edges it produced.
func (p *PPU) step() (vblank, stat bool) {
	switch p.phase {
	case phaseLineStart:
		p.lineStartClockCount = p.nextClockCount
		p.phase = phasePreOAM
		p.nextClockCount += 3

	case phasePreOAM:
		if p.LY == 0 {
			p.lyForCompare = 0
			p.mode = 0
		} else {
			p.lyForCompare = -1
			p.mode = 2
		}
		if p.updateStat() {
			stat = true
		}
		p.phase = phaseOAM
		p.nextClockCount++

	case phaseOAM:
		p.mode = 2
		p.lyForCompare = int(p.LY)
		p.oamScan()
		p.currX = 0
		if p.updateStat() {
			stat = true
		}
		p.phase = phaseDrawStart
		p.nextClockCount += 80

	case phaseDrawStart:
		p.mode = 3
		if p.updateStat() {
			stat = true
		}
		p.phase = phaseDrawSetup

	case phaseDrawSetup:
		p.bgFIFO.Clear()
		p.spriteFIFO.Clear()
		p.fetcherStep = 0
		p.fetcherX = 0
		p.fetcherSkippedFirstPush = false
		p.fetcherCycle = false
		p.spriteFetching = false
		if p.WY == p.LY {
			p.reachWindow = true
		}
		p.isInWindow = false
		p.discarting = int(p.SCX) % 8
		p.phase = phaseDraw

	case phaseDraw:
		p.drawDot()
		p.nextClockCount++
		if p.currX >= ScreenWidth {
			p.phase = phaseHBlankStart
		}

	case phaseHBlankStart:
		p.mode = 0
		if p.isInWindow {
			p.wyc++
		}
		if p.updateStat() {
			stat = true
		}
		end := p.lineStartClockCount + dotsPerLine
		if end <= p.nextClockCount {
			end = p.nextClockCount + 1
		}
		p.phase = phaseLineEnd
		p.nextClockCount = end

	case phaseLineEnd:
		p.LY++
		if int(p.LY) >= vblankStartLine {
			p.phase = phaseVBlankLine
		} else {
			p.phase = phaseLineStart
		}

	case phaseVBlankLine:
		p.lineStartClockCount = p.nextClockCount
		p.mode = 1
		p.lyForCompare = int(p.LY)
		if int(p.LY) == vblankStartLine {
			vblank = true
		}
		if p.updateStat() {
			stat = true
		}
		if int(p.LY) == 153 {
			p.phase = phaseVBlank153
			p.vblank153Sub = 0
			p.nextClockCount += 6
		} else {
			p.phase = phaseLineEnd
			p.nextClockCount += dotsPerLine
		}

	case phaseVBlank153:
		switch p.vblank153Sub {
		case 0:
			p.lyForCompare = 153
			p.nextClockCount += 2
		case 1:
			p.LY = 0
			p.lyForCompare = 0
			p.nextClockCount += 4
		default:
			p.lyForCompare = 0
			rem := p.lineStartClockCount + dotsPerLine - p.nextClockCount
			if rem < 1 {
				rem = 1
			}
			p.nextClockCount += rem
		}
		if p.updateStat() {
			stat = true
		}
		if p.vblank153Sub < 2 {
			p.vblank153Sub++
		} else {
			p.phase = phaseFrameWrap
		}

	case phaseFrameWrap:
		p.LY = 0
		p.currX = 0
		p.reachWindow = false
		p.wyc = 0
		p.phase = phaseLineStart
		p.nextClockCount++
	}
	return
}

// drawDot runs one dot's worth of sprite-fetch trigger check, fetcher
// advance, and (when not mid-sprite-fetch) pixel output.
func (p *PPU) drawDot() {
	if p.discarting == 0 && !p.spriteFetching && p.LCDC&0x02 != 0 {
		if s, ok := p.peekNextSprite(); ok && int(s.sx) <= p.currX+8 {
			p.currSprite = p.popNextSprite()
			p.fetcherStep = 0
			p.spriteFetching = true
			p.fetcherCycle = false
		}
	}

	p.tickFetcher()

	if p.spriteFetching {
		return
	}

	if !p.isInWindow && p.LCDC&0x20 != 0 && p.reachWindow {
		threshold := int(p.WX) - 7
		if threshold < 0 {
			threshold = 0
		}
		if p.currX >= threshold {
			p.isInWindow = true
			p.fetcherStep = 0
			p.fetcherX = 0
			p.discarting = 0
			p.bgFIFO.Clear()
			p.fetcherSkippedFirstPush = false
		}
	}

	if p.bgFIFO.Len() == 0 {
		return
	}
	bgPixel := p.bgFIFO.Pop()
	if p.discarting > 0 {
		p.discarting--
		return
	}

	bgColor := byte(0)
	if p.LCDC&0x01 != 0 {
		bgColor = bgPixel & 0x03
	}
	shade := shadeFromPalette(p.BGP, bgColor)

	if p.spriteFIFO.Len() != 0 {
		spritePixel := p.spriteFIFO.Pop()
		spriteColor := spritePixel & 0x03
		bgPriority := spritePixel&0x04 != 0
		if spriteColor != 0 && !(bgPriority && bgColor != 0) {
			palette := p.OBP0
			if spritePixel&0x08 != 0 {
				palette = p.OBP1
			}
			shade = shadeFromPalette(palette, spriteColor)
		}
	}

	p.Screen[int(p.LY)*ScreenWidth+p.currX] = shade
	p.currX++
}

func shadeFromPalette(palette, color byte) byte {
	return (palette >> (color * 2)) & 0x03
}

// statLevel computes the OR of the four STAT interrupt sources.
func (p *PPU) statLevel() bool {
	mode0 := p.statEnable&0x08 != 0 && p.mode == 0
	mode2 := p.statEnable&0x20 != 0 && p.mode == 2
	vblankSrc := (p.statEnable&0x10 != 0 || p.statEnable&0x20 != 0) && p.mode == 1
	lyc := p.statEnable&0x40 != 0 && p.lyForCompare >= 0 && byte(p.lyForCompare) == p.LYC
	return mode0 || mode2 || vblankSrc || lyc
}

func (p *PPU) updateStat() bool {
	level := p.statLevel()
	edge := level && !p.statSignal
	p.statSignal = level
	return edge
}
