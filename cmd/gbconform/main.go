// Command gbconform runs a batch of conformance ROMs concurrently and
// reports pass/fail per ROM by watching serial output for the common
// "Passed" / "Failed N tests" markers blargg-style test ROMs emit.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmgcore/dmgcore/internal/board"
)

var (
	passRe = regexp.MustCompile(`(?i)passed`)
	failRe = regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)
)

type result struct {
	rom      string
	passed   bool
	detail   string
	steps    int
	elapsed  time.Duration
	timedOut bool
}

func runROM(ctx context.Context, path string, maxSteps int, timeout time.Duration) result {
	res := result{rom: path}
	start := time.Now()

	rom, err := os.ReadFile(path)
	if err != nil {
		res.detail = fmt.Sprintf("read rom: %v", err)
		return res
	}
	b, err := board.New(rom)
	if err != nil {
		res.detail = fmt.Sprintf("construct board: %v", err)
		return res
	}
	b.ResetAfterBoot()

	var serial bytes.Buffer
	b.SetSerialWriter(&serial)

	deadline := start.Add(timeout)
	for i := 0; i < maxSteps; i++ {
		if ctx.Err() != nil {
			res.detail = "cancelled"
			return res
		}
		b.CPU.Step()
		res.steps = i + 1
		if b.CPU.IsStopped() {
			res.detail = "CPU entered Stopped state before a verdict was emitted"
			break
		}
		s := serial.String()
		if passRe.MatchString(s) {
			res.passed = true
			res.detail = "Passed"
			break
		}
		if m := failRe.FindStringSubmatch(s); m != nil {
			res.detail = m[0]
			break
		}
		if timeout > 0 && time.Now().After(deadline) {
			res.timedOut = true
			res.detail = "timeout"
			break
		}
	}
	res.elapsed = time.Since(start)
	return res
}

func main() {
	romDir := flag.String("romdir", "", "directory of conformance ROMs (.gb) to run")
	steps := flag.Int("steps", 20_000_000, "max CPU steps per ROM")
	timeout := flag.Duration("timeout", 30*time.Second, "wall-clock timeout per ROM; 0 disables")
	concurrency := flag.Int("j", 4, "maximum ROMs to run concurrently")
	flag.Parse()

	if *romDir == "" {
		log.Fatal("-romdir is required")
	}
	matches, err := filepath.Glob(filepath.Join(*romDir, "*.gb"))
	if err != nil {
		log.Fatalf("glob roms: %v", err)
	}
	if len(matches) == 0 {
		log.Fatalf("no .gb files found under %s", *romDir)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)

	results := make([]result, len(matches))
	for i, path := range matches {
		i, path := i, path
		g.Go(func() error {
			results[i] = runROM(ctx, path, *steps, *timeout)
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, r := range results {
		status := "FAIL"
		if r.passed {
			status = "PASS"
		}
		if !r.passed {
			failures++
		}
		fmt.Printf("%-4s %-40s steps=%-9d elapsed=%-10s %s\n",
			status, filepath.Base(r.rom), r.steps, r.elapsed.Truncate(time.Millisecond), strings.TrimSpace(r.detail))
	}
	fmt.Printf("\n%d/%d passed\n", len(results)-failures, len(results))
	if failures > 0 {
		os.Exit(1)
	}
}
