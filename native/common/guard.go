package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused is returned by mutating operations of a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports per-module pause flags from state.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused, tagged with the module name, when the
// module is paused. A nil view never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%s: %w", module, ErrModulePaused)
	}
	return nil
}
