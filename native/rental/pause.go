package rental

// SetPaused pauses or resumes every mutating rental operation. Only the
// arbiter may toggle the flag, and it stays callable while paused.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.arbiter == ([20]byte{}) {
		return ErrArbiterNotConfig
	}
	if caller != e.arbiter {
		return unauthorized("setPaused", caller, RoleArbiter)
	}
	if err := e.state.SetPaused(ModuleName, paused); err != nil {
		return err
	}
	e.emit(NewPauseUpdatedEvent(paused, caller))
	return nil
}

// Paused reports whether mutating operations are currently rejected.
func (e *Engine) Paused() bool {
	if e == nil || e.pauses == nil {
		return false
	}
	return e.pauses.IsPaused(ModuleName)
}
