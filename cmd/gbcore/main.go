// Command gbcore runs a ROM headlessly against the core board: no
// graphical shell, no audio output, just deterministic ticking with an
// optional PNG dump and CRC32 of the final frame buffer for scripted
// conformance checks.
package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dmgcore/dmgcore/internal/board"
	"github.com/dmgcore/dmgcore/internal/cartridge"
	"github.com/dmgcore/dmgcore/internal/ppu"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM to run from 0x0000")
	frames := flag.Int("frames", 60, "number of frames to run before exiting")
	pngOut := flag.String("png", "", "optional path to write the final frame as a PNG")
	trace := flag.Bool("trace", false, "log PC/cycles/A/F/SP per CPU step")
	saveRAM := flag.Bool("save", true, "persist battery RAM to ROM.sav on exit and load on start")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("read rom: %v", err)
	}

	b, err := board.New(rom)
	if err != nil {
		log.Fatalf("construct board: %v", err)
	}

	if *bootPath != "" {
		boot, err := os.ReadFile(*bootPath)
		if err != nil {
			log.Fatalf("read bootrom: %v", err)
		}
		b.SetBootROM(boot)
	} else {
		b.ResetAfterBoot()
	}

	savPath := strings.TrimSuffix(*romPath, ".gb") + ".sav"
	if *saveRAM {
		if batt, ok := b.Cart.(cartridge.BatteryBacked); ok {
			if data, err := os.ReadFile(savPath); err == nil {
				batt.LoadRAM(data)
				log.Printf("loaded save RAM: %s (%d bytes)", savPath, len(data))
			}
		}
	}

	vblanks := make(chan board.Screen, 1)
	b.OnVBlank = func(s board.Screen) {
		select {
		case vblanks <- s:
		default:
		}
	}

	start := time.Now()
	var last board.Screen
	seen := 0
	for seen < *frames {
		pc := b.CPU.PC
		cycles := b.CPU.Step()
		if *trace {
			fmt.Printf("PC=%04X cyc=%d A=%02X F=%02X SP=%04X\n", pc, cycles, b.CPU.A, b.CPU.F, b.CPU.SP)
		}
		if b.CPU.IsStopped() {
			log.Fatalf("CPU entered Stopped state (undefined opcode or STOP) after %d frames", seen)
		}
		select {
		case last = <-vblanks:
			seen++
		default:
		}
	}
	dur := time.Since(start)

	crc := crc32.ChecksumIEEE(last[:])
	log.Printf("headless: frames=%d elapsed=%s fb_crc32=%08x", seen, dur.Truncate(time.Millisecond), crc)

	if *pngOut != "" {
		if err := saveFramePNG(last, *pngOut); err != nil {
			log.Fatalf("write PNG: %v", err)
		}
	}

	if *saveRAM {
		if batt, ok := b.Cart.(cartridge.BatteryBacked); ok {
			if data := batt.SaveRAM(); len(data) > 0 {
				if err := os.WriteFile(savPath, data, 0644); err != nil {
					log.Printf("write %s: %v", savPath, err)
				} else {
					log.Printf("wrote %s", savPath)
				}
			}
		}
	}
}

var shadeToGray = [4]byte{0xFF, 0xAA, 0x55, 0x00}

func saveFramePNG(fb board.Screen, path string) error {
	img := image.NewGray(image.Rect(0, 0, ppu.ScreenWidth, ppu.ScreenHeight))
	for i, shade := range fb {
		img.SetGray(i%ppu.ScreenWidth, i/ppu.ScreenWidth, color.Gray{Y: shadeToGray[shade&3]})
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
