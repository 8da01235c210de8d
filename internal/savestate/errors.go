package savestate

import "fmt"

// ErrUnexpectedEOF is returned when a decode runs past the end of the
// snapshot buffer.
var ErrUnexpectedEOF = fmt.Errorf("savestate: unexpected end of data")

// InvalidPPUModeError reports a decoded STAT mode outside {0,1,2,3}.
type InvalidPPUModeError struct{ Value byte }

func (e *InvalidPPUModeError) Error() string {
	return fmt.Sprintf("savestate: invalid PPU mode %d", e.Value)
}

// DesyncError reports a sub-machine whose last-observed clock doesn't
// match the Board's clock at load time.
type DesyncError struct {
	Component      string
	Expected, Actual uint64
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("savestate: %s desync: expected clock %d, got %d", e.Component, e.Expected, e.Actual)
}

// ClockBackwardsError reports a decoded clock_count lower than the
// currently running instance's clock — never valid for in-place load.
type ClockBackwardsError struct{ Expected, Actual uint64 }

func (e *ClockBackwardsError) Error() string {
	return fmt.Sprintf("savestate: clock moved backwards: had %d, snapshot has %d", e.Expected, e.Actual)
}
