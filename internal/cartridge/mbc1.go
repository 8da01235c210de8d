package cartridge

// mbc1 implements the classic 5-bit-ROM-bank/2-bit-RAM-or-ROM-hi-bank
// mapper, including the banking-mode select and the {0,0x20,0x40,0x60}
// zero-bank quirk.
type mbc1 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	bank5      byte // low 5 bits of ROM bank, 0 treated as 1
	bank2      byte // RAM bank, or high 2 bits of ROM bank in mode 0
	mode       byte // 0 = ROM banking mode, 1 = RAM banking mode
}

func newMBC1(rom []byte, ramSize int) *mbc1 {
	m := &mbc1{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.bank5 = 1
	return m
}

func (m *mbc1) romBank() int {
	lo := int(m.bank5 & 0x1F)
	if lo == 0 {
		lo = 1
	}
	if m.mode == 0 {
		return int(m.bank2&0x03)<<5 | lo
	}
	return lo
}

func (m *mbc1) ramBank() int {
	if m.mode == 1 {
		return int(m.bank2 & 0x03)
	}
	return 0
}

func (m *mbc1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		bank := 0
		if m.mode == 1 {
			bank = int(m.bank2&0x03) << 5
		}
		off := bank*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		off := m.romBank()*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramBank()*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		m.bank5 = value & 0x1F
	case addr < 0x6000:
		m.bank2 = value & 0x03
	case addr < 0x8000:
		m.mode = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := m.ramBank()*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mbc1) CurrBank() byte { return byte(m.romBank()) }
func (m *mbc1) NumBanks() int  { return len(m.rom) / 0x4000 }

func (m *mbc1) SaveState() []byte {
	out := make([]byte, 4+len(m.ram))
	out[0] = boolByte(m.ramEnabled)
	out[1] = m.bank5
	out[2] = m.bank2
	out[3] = m.mode
	copy(out[4:], m.ram)
	return out
}

func (m *mbc1) LoadState(data []byte) error {
	if len(data) < 4 {
		return errShortState
	}
	m.ramEnabled = data[0] != 0
	m.bank5 = data[1]
	m.bank2 = data[2]
	m.mode = data[3]
	copy(m.ram, data[4:])
	return nil
}

func (m *mbc1) SaveRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *mbc1) LoadRAM(data []byte) { copy(m.ram, data) }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
