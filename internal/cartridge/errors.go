package cartridge

import "errors"

var errShortState = errors.New("cartridge: save-state data shorter than expected")
