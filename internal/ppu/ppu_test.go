package ppu

import "testing"

func statMode(p *PPU) byte { return p.Read(0xFF41) & 0x03 }

func TestPPUModeSequenceOneLine(t *testing.T) {
	p := New()
	p.Write(0xFF40, 0x80) // LCD on
	p.Update(1)
	if m := statMode(p); m != 0 && m != 2 {
		t.Fatalf("unexpected mode right after enable: %d", m)
	}
	p.Update(90)
	if m := statMode(p); m != 3 {
		t.Fatalf("expected mode 3 by dot 90, got %d", m)
	}
	p.Update(300)
	if m := statMode(p); m != 0 {
		t.Fatalf("expected mode 0 (hblank) by dot 300, got %d", m)
	}
}

func TestPPUVBlankEntersAtLine144(t *testing.T) {
	p := New()
	p.Write(0xFF40, 0x80)
	var sawVBlank bool
	for clock := uint64(1); clock <= uint64(200)*dotsPerLine; clock++ {
		vb, _ := p.Update(clock)
		if vb {
			sawVBlank = true
			break
		}
	}
	if !sawVBlank {
		t.Fatalf("expected a VBlank edge within 200 lines")
	}
}

func TestLYIncrementsAcrossLines(t *testing.T) {
	p := New()
	p.Write(0xFF40, 0x80)
	p.Update(uint64(dotsPerLine) + 10)
	if p.LY == 0 {
		t.Fatalf("expected LY to have advanced past line 0")
	}
}

func TestLCDCBit7FallingEdgeParksAtZero(t *testing.T) {
	p := New()
	p.Write(0xFF40, 0x80)
	p.Update(1000)
	p.Write(0xFF40, 0x00) // disable
	if p.LY != 0 {
		t.Fatalf("expected LY=0 after disabling LCD, got %d", p.LY)
	}
	if statMode(p) != 0 {
		t.Fatalf("expected mode 0 after disabling LCD, got %d", statMode(p))
	}
}

func TestSolidTileFillsScreenWithShade3(t *testing.T) {
	p := New()
	p.Write(0xFF47, 0xE4) // BGP = 11 10 01 00 -> color1->shade1 etc; use tile color1 with this palette? use color per test below
	for addr := uint16(0x9800); addr <= 0x9BFF; addr++ {
		p.Write(addr, 0x01)
	}
	for addr := uint16(0x8010); addr <= 0x801F; addr++ {
		p.Write(addr, 0xFF)
	}
	p.Write(0xFF40, 0x91) // LCD on, BG on, tile data at 0x8000, map at 0x9800
	for clock := uint64(1); clock <= uint64(dotsPerLine); clock++ {
		p.Update(clock)
	}
	want := shadeFromPalette(0xE4, 3)
	for x := 0; x < ScreenWidth; x++ {
		if got := p.Screen[x]; got != want {
			t.Fatalf("pixel %d: got shade %d want %d", x, got, want)
		}
	}
}

func TestOAMScanOrdersByAscendingXWithTailPriority(t *testing.T) {
	p := New()
	p.Write(0xFF40, 0x80)
	// Two sprites on line 0: sx=20 at OAM index 0, sx=10 at OAM index 1.
	p.OAM[0], p.OAM[1], p.OAM[2], p.OAM[3] = 16, 20, 0, 0
	p.OAM[4], p.OAM[5], p.OAM[6], p.OAM[7] = 16, 10, 0, 0
	p.LY = 0
	p.oamScan()
	if len(p.spriteBuffer) != 2 {
		t.Fatalf("expected 2 sprites, got %d", len(p.spriteBuffer))
	}
	tail, _ := p.peekNextSprite()
	if tail.sx != 10 {
		t.Fatalf("expected sx=10 sprite at tail (highest priority), got sx=%d", tail.sx)
	}
}
