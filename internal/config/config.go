// Package config holds settings that affect how a Board is driven by a
// host, as distinct from anything the core itself decides.
package config

// Config contains host-level run settings.
type Config struct {
	Trace    bool // log PC/opcode/cycles per CPU step
	LimitFPS bool // throttle VBlank delivery to ~60 Hz
	Frames   int  // headless run length in frames; 0 means run until Stopped
}
