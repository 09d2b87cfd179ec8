package vault

import "errors"

// ErrModulePaused is returned by every user operation while the emergency
// stop is engaged.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the emergency-stop switchboard consulted before any user
// operation mutates state.
type PauseView interface {
	IsPaused(module string) bool
}

func guardPause(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
