// Package cartridge implements the mapper contract from spec.md §4.5: a
// deterministic read/write surface over ROM+RAM banking, plus the
// operations an external disassembler or JIT fingerprint needs.
package cartridge

import "errors"

// Cartridge is the mapper contract. Addresses are CPU addresses.
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)

	// CurrBank reports the ROM bank currently mapped at 0x4000-0x7FFF.
	CurrBank() byte
	// NumBanks reports the total ROM bank count.
	NumBanks() int

	// SaveState/LoadState serialize mapper registers and RAM contents
	// (byte-serial, per internal/savestate's field-order convention).
	SaveState() []byte
	LoadState(data []byte) error
}

// BatteryBacked is implemented by cartridges whose external RAM should
// survive across sessions.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// ErrUnsupportedMapper is returned by New when the header names a mapper
// this package has no implementation for.
var ErrUnsupportedMapper = errors.New("cartridge: unsupported mapper type")

// New selects a concrete mapper from the ROM header. Logo mismatch and old
// checksum mismatch are non-fatal (spec.md §7); only size and unsupported
// mapper type are rejected.
func New(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	switch h.CartType {
	case 0x00:
		return newROMOnly(rom), nil
	case 0x01, 0x02, 0x03:
		return newMBC1(rom, h.RAMSizeBytes), nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return newMBC3(rom, h.RAMSizeBytes), nil
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return newMBC5(rom, h.RAMSizeBytes), nil
	default:
		return nil, ErrUnsupportedMapper
	}
}
