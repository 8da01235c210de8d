package cartridge

// mbc3 adds a RAM-bank-or-RTC-register select on top of MBC1-style ROM
// banking. RTC registers are carried as inert storage: reads/writes
// round-trip so ROMs that probe for RTC presence don't desync, but there
// is no wall-clock advancement (real-time clock emulation is out of scope).
type mbc3 struct {
	rom []byte
	ram []byte
	rtc [5]byte // seconds, minutes, hours, day-low, day-high/flags

	ramEnabled bool
	romBank    byte // 7 bits, 0 treated as 1
	ramOrRTC   byte // 0-3 selects RAM bank; 0x08-0x0C selects an RTC register
	latched    bool
}

func newMBC3(rom []byte, ramSize int) *mbc3 {
	m := &mbc3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	return m
}

func (m *mbc3) bank() int {
	b := int(m.romBank & 0x7F)
	if b == 0 {
		b = 1
	}
	return b
}

func (m *mbc3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		off := m.bank()*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramOrRTC >= 0x08 && m.ramOrRTC <= 0x0C {
			return m.rtc[m.ramOrRTC-0x08]
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		off := int(m.ramOrRTC&0x03)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.ramOrRTC = value
	case addr < 0x8000:
		if value == 0x01 && !m.latched {
			m.latched = true
		} else if value == 0x00 {
			m.latched = false
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.ramOrRTC >= 0x08 && m.ramOrRTC <= 0x0C {
			m.rtc[m.ramOrRTC-0x08] = value
			return
		}
		if len(m.ram) == 0 {
			return
		}
		off := int(m.ramOrRTC&0x03)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mbc3) CurrBank() byte { return byte(m.bank()) }
func (m *mbc3) NumBanks() int  { return len(m.rom) / 0x4000 }

func (m *mbc3) SaveState() []byte {
	out := make([]byte, 9+len(m.ram))
	out[0] = boolByte(m.ramEnabled)
	out[1] = m.romBank
	out[2] = m.ramOrRTC
	out[3] = boolByte(m.latched)
	copy(out[4:9], m.rtc[:])
	copy(out[9:], m.ram)
	return out
}

func (m *mbc3) LoadState(data []byte) error {
	if len(data) < 9 {
		return errShortState
	}
	m.ramEnabled = data[0] != 0
	m.romBank = data[1]
	m.ramOrRTC = data[2]
	m.latched = data[3] != 0
	copy(m.rtc[:], data[4:9])
	copy(m.ram, data[9:])
	return nil
}

func (m *mbc3) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *mbc3) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}
