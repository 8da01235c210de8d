package cartridge

import "testing"

func makeROM(size int, cartType byte) []byte {
	rom := make([]byte, size)
	rom[0x0147] = cartType
	switch size {
	case 32 * 1024:
		rom[0x0148] = 0x00
	case 512 * 1024:
		rom[0x0148] = 0x04
	default:
		rom[0x0148] = 0x03
	}
	return rom
}

func TestNewROMOnly(t *testing.T) {
	rom := makeROM(32*1024, 0x00)
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.(*romOnly); !ok {
		t.Fatalf("expected *romOnly, got %T", c)
	}
}

func TestUnsupportedMapperRejected(t *testing.T) {
	rom := makeROM(32*1024, 0xFE)
	_, err := New(rom)
	if err != ErrUnsupportedMapper {
		t.Fatalf("expected ErrUnsupportedMapper, got %v", err)
	}
}

func TestMBC1BankSwitchAndZeroBankQuirk(t *testing.T) {
	rom := make([]byte, 128*1024)
	rom[0x0147] = 0x01
	rom[0x0148] = 0x02
	// Mark bank 2 with a sentinel byte at its base.
	rom[2*0x4000] = 0x42
	m := newMBC1(rom, 0)
	m.Write(0x2000, 0x02) // select bank 2
	if got := m.Read(0x4000); got != 0x42 {
		t.Fatalf("bank switch: got %#02x want 0x42", got)
	}
	m.Write(0x2000, 0x00) // bank 0 -> treated as 1
	if m.romBank() != 1 {
		t.Fatalf("bank0 quirk: got bank %d want 1", m.romBank())
	}
}

func TestMBC1RAMEnableGate(t *testing.T) {
	rom := make([]byte, 32*1024)
	rom[0x0147] = 0x02
	m := newMBC1(rom, 0x2000)
	m.Write(0xA000, 0x99) // RAM disabled: write ignored
	if v := m.Read(0xA000); v != 0xFF {
		t.Fatalf("expected 0xFF with RAM disabled, got %#02x", v)
	}
	m.Write(0x0000, 0x0A) // enable
	m.Write(0xA000, 0x99)
	if v := m.Read(0xA000); v != 0x99 {
		t.Fatalf("RAM write/read got %#02x want 0x99", v)
	}
}

func TestMBC1SaveLoadStateRoundTrip(t *testing.T) {
	rom := make([]byte, 128*1024)
	rom[0x0147] = 0x03
	m := newMBC1(rom, 0x2000)
	m.Write(0x0000, 0x0A)
	m.Write(0x2000, 0x05)
	m.Write(0xA000, 0x7E)
	snap := m.SaveState()

	m2 := newMBC1(rom, 0x2000)
	if err := m2.LoadState(snap); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if m2.Read(0xA000) != 0x7E {
		t.Fatalf("RAM not restored")
	}
	if m2.romBank() != m.romBank() {
		t.Fatalf("rom bank not restored: got %d want %d", m2.romBank(), m.romBank())
	}
}

func TestMBC3RTCRegistersRoundTrip(t *testing.T) {
	rom := make([]byte, 32*1024)
	rom[0x0147] = 0x0F
	m := newMBC3(rom, 0)
	m.Write(0x0000, 0x0A) // enable
	m.Write(0x4000, 0x08) // select RTC seconds register
	m.Write(0xA000, 0x3B)
	if v := m.Read(0xA000); v != 0x3B {
		t.Fatalf("RTC register round-trip got %#02x want 0x3B", v)
	}
}

func TestMBC5NineBitBank(t *testing.T) {
	rom := make([]byte, 0x4000*300)
	rom[0x0147] = 0x19
	rom[0x4000*257] = 0x55
	m := newMBC5(rom, 0)
	m.Write(0x2000, 0x01) // low 8 bits
	m.Write(0x3000, 0x01) // bit 8
	if m.romBank != 0x101 {
		t.Fatalf("expected bank 0x101, got %#x", m.romBank)
	}
	if v := m.Read(0x4000); v != 0x55 {
		t.Fatalf("got %#02x want 0x55", v)
	}
}
