package ppu

import "github.com/dmgcore/dmgcore/internal/savestate"

// Encode appends the PPU's full state in the field order declared in
// spec.md §3: VRAM, OAM, screen, sprite buffer, registers, dot-machine,
// window state, fetcher state, FIFOs, output cursor, LYC-compare latch,
// STAT edge latch.
func (p *PPU) Encode(w *savestate.Writer) {
	w.Raw(p.VRAM[:])
	w.Raw(p.OAM[:])
	w.Raw(p.Screen[:])

	w.U8(byte(len(p.spriteBuffer)))
	for _, s := range p.spriteBuffer {
		w.U8(s.sy)
		w.U8(s.sx)
		w.U8(s.tile)
		w.U8(s.flags)
		w.U8(byte(s.oamIndex))
	}

	w.U8(p.LCDC)
	w.U8(p.statEnable)
	w.U8(p.SCY)
	w.U8(p.SCX)
	w.U8(p.LY)
	w.U8(p.LYC)
	w.U8(p.BGP)
	w.U8(p.OBP0)
	w.U8(p.OBP1)
	w.U8(p.WY)
	w.U8(p.WX)
	w.U8(p.mode)

	w.U8(byte(p.phase))
	w.U64(p.nextClockCount)
	w.U64(p.lineStartClockCount)
	w.Bool(p.lcdWasOn)

	w.U32(uint32(p.wyc))
	w.Bools(p.reachWindow, p.isInWindow)

	w.U32(uint32(p.fetcherStep))
	w.Bools(p.fetcherCycle, p.fetcherSkippedFirstPush, p.spriteFetching)
	w.U32(uint32(p.fetcherX))
	w.U8(p.fetchTileNumber)
	w.U8(p.fetchTileDataLow)
	w.U8(p.fetchTileDataHigh)
	w.U8(p.currSprite.sy)
	w.U8(p.currSprite.sx)
	w.U8(p.currSprite.tile)
	w.U8(p.currSprite.flags)
	w.U8(byte(p.currSprite.oamIndex))

	encodeFIFO(w, &p.bgFIFO)
	encodeFIFO(w, &p.spriteFIFO)

	w.U32(uint32(p.currX))
	w.U32(uint32(p.discarting))

	lyc := byte(0xFF)
	if p.lyForCompare >= 0 {
		lyc = byte(p.lyForCompare)
	}
	w.U8(lyc)
	w.Bool(p.lyForCompare >= 0)
	w.Bool(p.statSignal)
	w.U32(uint32(p.vblank153Sub))
}

func encodeFIFO(w *savestate.Writer, f *fifo) {
	w.U8(byte(f.len))
	for i := 0; i < f.len; i++ {
		w.U8(f.At(i))
	}
}

// Decode restores state written by Encode. A mode value outside {0,1,2,3}
// yields InvalidPPUModeError, matching spec.md §7's save-state error
// taxonomy.
func (p *PPU) Decode(r *savestate.Reader) error {
	vram, err := r.Raw(len(p.VRAM))
	if err != nil {
		return err
	}
	copy(p.VRAM[:], vram)
	oam, err := r.Raw(len(p.OAM))
	if err != nil {
		return err
	}
	copy(p.OAM[:], oam)
	screen, err := r.Raw(len(p.Screen))
	if err != nil {
		return err
	}
	copy(p.Screen[:], screen)

	n, err := r.U8()
	if err != nil {
		return err
	}
	buf := make([]spriteEntry, 0, n)
	for i := byte(0); i < n; i++ {
		sy, err := r.U8()
		if err != nil {
			return err
		}
		sx, err := r.U8()
		if err != nil {
			return err
		}
		tile, err := r.U8()
		if err != nil {
			return err
		}
		flags, err := r.U8()
		if err != nil {
			return err
		}
		idx, err := r.U8()
		if err != nil {
			return err
		}
		buf = append(buf, spriteEntry{sy, sx, tile, flags, int(idx)})
	}
	p.spriteBuffer = buf

	fields := []*byte{&p.LCDC, &p.statEnable, &p.SCY, &p.SCX, &p.LY, &p.LYC, &p.BGP, &p.OBP0, &p.OBP1, &p.WY, &p.WX, &p.mode}
	for _, f := range fields {
		v, err := r.U8()
		if err != nil {
			return err
		}
		*f = v
	}
	if p.mode > 3 {
		return &savestate.InvalidPPUModeError{Value: p.mode}
	}

	ph, err := r.U8()
	if err != nil {
		return err
	}
	p.phase = phase(ph)
	if p.nextClockCount, err = r.U64(); err != nil {
		return err
	}
	if p.lineStartClockCount, err = r.U64(); err != nil {
		return err
	}
	if p.lcdWasOn, err = r.Bool(); err != nil {
		return err
	}

	wyc, err := r.U32()
	if err != nil {
		return err
	}
	p.wyc = int(wyc)
	flags, err := r.Bools(2)
	if err != nil {
		return err
	}
	p.reachWindow, p.isInWindow = flags[0], flags[1]

	fstep, err := r.U32()
	if err != nil {
		return err
	}
	p.fetcherStep = int(fstep)
	fflags, err := r.Bools(3)
	if err != nil {
		return err
	}
	p.fetcherCycle, p.fetcherSkippedFirstPush, p.spriteFetching = fflags[0], fflags[1], fflags[2]
	fx, err := r.U32()
	if err != nil {
		return err
	}
	p.fetcherX = int(fx)
	if p.fetchTileNumber, err = r.U8(); err != nil {
		return err
	}
	if p.fetchTileDataLow, err = r.U8(); err != nil {
		return err
	}
	if p.fetchTileDataHigh, err = r.U8(); err != nil {
		return err
	}
	sy, err := r.U8()
	if err != nil {
		return err
	}
	sx, err := r.U8()
	if err != nil {
		return err
	}
	tile, err := r.U8()
	if err != nil {
		return err
	}
	sflags, err := r.U8()
	if err != nil {
		return err
	}
	idx, err := r.U8()
	if err != nil {
		return err
	}
	p.currSprite = spriteEntry{sy, sx, tile, sflags, int(idx)}

	if err := decodeFIFO(r, &p.bgFIFO); err != nil {
		return err
	}
	if err := decodeFIFO(r, &p.spriteFIFO); err != nil {
		return err
	}

	currX, err := r.U32()
	if err != nil {
		return err
	}
	p.currX = int(currX)
	discarting, err := r.U32()
	if err != nil {
		return err
	}
	p.discarting = int(discarting)

	lyc, err := r.U8()
	if err != nil {
		return err
	}
	valid, err := r.Bool()
	if err != nil {
		return err
	}
	if valid {
		p.lyForCompare = int(lyc)
	} else {
		p.lyForCompare = -1
	}
	if p.statSignal, err = r.Bool(); err != nil {
		return err
	}
	sub, err := r.U32()
	if err != nil {
		return err
	}
	p.vblank153Sub = int(sub)
	return nil
}

func decodeFIFO(r *savestate.Reader, f *fifo) error {
	n, err := r.U8()
	if err != nil {
		return err
	}
	f.Clear()
	for i := byte(0); i < n; i++ {
		v, err := r.U8()
		if err != nil {
			return err
		}
		f.Push(v)
	}
	return nil
}
