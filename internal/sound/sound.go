// Package sound implements the register surface of the DMG sound
// controller. Per spec.md §1 the mixing DSP is explicitly out of scope —
// this package stores NR10–NR52 and wave RAM and applies the DMG read-back
// masks, without synthesizing any audio signal. Channel triggers are not
// tracked: the NR52 channel-status bits keep their reset value.
package sound

import "github.com/dmgcore/dmgcore/internal/savestate"

// Controller is a pull-style sub-machine: Write/Read/Update mirror the
// Timer and PPU shape so the Board can drive it uniformly.
type Controller struct {
	nr10, nr11, nr12, nr13, nr14 byte
	nr21, nr22, nr23, nr24       byte
	nr30, nr31, nr32, nr33, nr34 byte
	nr41, nr42, nr43, nr44       byte
	nr50, nr51, nr52             byte

	wave [16]byte

	LastClockCount uint64
}

// New returns a Controller in its cold-boot state.
func New() *Controller { return &Controller{} }

// ResetAfterBoot matches the register values hardware leaves behind once
// the boot ROM hands off to the cartridge.
func (s *Controller) ResetAfterBoot(clock uint64) {
	s.nr10, s.nr11, s.nr12, s.nr13, s.nr14 = 0x80, 0xBF, 0xF3, 0xFF, 0xBF
	s.nr21, s.nr22, s.nr23, s.nr24 = 0x3F, 0x00, 0xFF, 0xBF
	s.nr30, s.nr31, s.nr32, s.nr33, s.nr34 = 0x7F, 0xFF, 0x9F, 0xFF, 0xBF
	s.nr41, s.nr42, s.nr43, s.nr44 = 0xFF, 0x00, 0x00, 0xBF
	s.nr50, s.nr51, s.nr52 = 0x77, 0xF3, 0xF1
	s.LastClockCount = clock
}

// Update catches the controller up to clock. There is no envelope, sweep,
// or frame-sequencer simulation: the register surface is all the spec
// requires, and nothing here raises an interrupt edge.
func (s *Controller) Update(clock uint64) { s.LastClockCount = clock }

// Write stores a register write, masking off bits real hardware doesn't
// implement so read-back matches a physical DMG.
func (s *Controller) Write(clock uint64, addr uint16, v byte) {
	s.Update(clock)
	switch addr {
	case 0xFF10:
		s.nr10 = v & 0x7F
	case 0xFF11:
		s.nr11 = v
	case 0xFF12:
		s.nr12 = v
	case 0xFF13:
		s.nr13 = v
	case 0xFF14:
		s.nr14 = v & 0xC7
	case 0xFF16:
		s.nr21 = v
	case 0xFF17:
		s.nr22 = v
	case 0xFF18:
		s.nr23 = v
	case 0xFF19:
		s.nr24 = v & 0xC7
	case 0xFF1A:
		s.nr30 = v & 0x80
	case 0xFF1B:
		s.nr31 = v
	case 0xFF1C:
		s.nr32 = v & 0x60
	case 0xFF1D:
		s.nr33 = v
	case 0xFF1E:
		s.nr34 = v & 0xC7
	case 0xFF20:
		s.nr41 = v & 0x3F
	case 0xFF21:
		s.nr42 = v
	case 0xFF22:
		s.nr43 = v
	case 0xFF23:
		s.nr44 = v & 0xC0
	case 0xFF24:
		s.nr50 = v
	case 0xFF25:
		s.nr51 = v
	case 0xFF26:
		s.nr52 = (s.nr52 & 0x0F) | (v & 0x80)
	default:
		if addr >= 0xFF30 && addr <= 0xFF3F {
			s.wave[addr-0xFF30] = v
		}
	}
}

// readMask enumerates which bits each register reads back as fixed 1s
// (the "always reads as 1" bits documented by every DMG reference).
var readMask = map[uint16]byte{
	0xFF10: 0x80, 0xFF11: 0x3F, 0xFF12: 0x00, 0xFF13: 0xFF, 0xFF14: 0xBF,
	0xFF16: 0x3F, 0xFF17: 0x00, 0xFF18: 0xFF, 0xFF19: 0xBF,
	0xFF1A: 0x7F, 0xFF1B: 0xFF, 0xFF1C: 0x9F, 0xFF1D: 0xFF, 0xFF1E: 0xBF,
	0xFF20: 0xFF, 0xFF21: 0x00, 0xFF22: 0x00, 0xFF23: 0xBF,
	0xFF24: 0x00, 0xFF25: 0x00, 0xFF26: 0x70,
}

func (s *Controller) Read(clock uint64, addr uint16) byte {
	s.Update(clock)
	mask, known := readMask[addr]
	if !known {
		if addr >= 0xFF30 && addr <= 0xFF3F {
			return s.wave[addr-0xFF30]
		}
		return 0xFF
	}
	return s.register(addr) | mask
}

func (s *Controller) register(addr uint16) byte {
	switch addr {
	case 0xFF10:
		return s.nr10
	case 0xFF11:
		return s.nr11
	case 0xFF12:
		return s.nr12
	case 0xFF13:
		return s.nr13
	case 0xFF14:
		return s.nr14
	case 0xFF16:
		return s.nr21
	case 0xFF17:
		return s.nr22
	case 0xFF18:
		return s.nr23
	case 0xFF19:
		return s.nr24
	case 0xFF1A:
		return s.nr30
	case 0xFF1B:
		return s.nr31
	case 0xFF1C:
		return s.nr32
	case 0xFF1D:
		return s.nr33
	case 0xFF1E:
		return s.nr34
	case 0xFF20:
		return s.nr41
	case 0xFF21:
		return s.nr42
	case 0xFF22:
		return s.nr43
	case 0xFF23:
		return s.nr44
	case 0xFF24:
		return s.nr50
	case 0xFF25:
		return s.nr51
	case 0xFF26:
		return s.nr52
	default:
		return 0xFF
	}
}

// Encode appends the controller's registers and wave RAM, in declaration
// order, followed by last_clock_count.
func (s *Controller) Encode(w *savestate.Writer) {
	regs := []byte{
		s.nr10, s.nr11, s.nr12, s.nr13, s.nr14,
		s.nr21, s.nr22, s.nr23, s.nr24,
		s.nr30, s.nr31, s.nr32, s.nr33, s.nr34,
		s.nr41, s.nr42, s.nr43, s.nr44,
		s.nr50, s.nr51, s.nr52,
	}
	for _, r := range regs {
		w.U8(r)
	}
	w.Raw(s.wave[:])
	w.U64(s.LastClockCount)
}

// Decode restores state written by Encode.
func (s *Controller) Decode(r *savestate.Reader) error {
	regs := []*byte{
		&s.nr10, &s.nr11, &s.nr12, &s.nr13, &s.nr14,
		&s.nr21, &s.nr22, &s.nr23, &s.nr24,
		&s.nr30, &s.nr31, &s.nr32, &s.nr33, &s.nr34,
		&s.nr41, &s.nr42, &s.nr43, &s.nr44,
		&s.nr50, &s.nr51, &s.nr52,
	}
	for _, f := range regs {
		v, err := r.U8()
		if err != nil {
			return err
		}
		*f = v
	}
	wave, err := r.Raw(len(s.wave))
	if err != nil {
		return err
	}
	copy(s.wave[:], wave)
	lc, err := r.U64()
	if err != nil {
		return err
	}
	s.LastClockCount = lc
	return nil
}
