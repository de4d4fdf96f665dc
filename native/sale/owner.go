package sale

import (
	"tokensale/core/events"
	"tokensale/core/types"
)

// InitiateOwnershipTransfer begins the two-step administrator handover by
// naming a pending administrator. A single-step handover risks permanent
// lockout when the new identity is mistyped or unreachable; the recipient
// must claim control explicitly via AcceptOwnershipTransfer.
func (e *Engine) InitiateOwnershipTransfer(caller, newAdmin types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdminLocked(caller); err != nil {
		return err
	}
	if newAdmin.IsZero() {
		return ErrZeroAddress
	}
	prev := e.state.PendingAdministrator
	e.state.PendingAdministrator = newAdmin
	if err := e.persistLocked(); err != nil {
		e.state.PendingAdministrator = prev
		return err
	}
	e.emit(events.SaleOwnershipInitiated{Admin: caller, Pending: newAdmin})
	return nil
}

// AcceptOwnershipTransfer completes the handover. Only the pending
// administrator may claim; the pending slot is cleared on success.
func (e *Engine) AcceptOwnershipTransfer(caller types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.PendingAdministrator.IsZero() || caller != e.state.PendingAdministrator {
		return ErrNotPendingAdministrator
	}
	oldAdmin := e.state.Administrator
	oldPending := e.state.PendingAdministrator
	e.state.Administrator = caller
	e.state.PendingAdministrator = types.ZeroAddress
	if err := e.persistLocked(); err != nil {
		e.state.Administrator = oldAdmin
		e.state.PendingAdministrator = oldPending
		return err
	}
	e.emit(events.SaleOwnershipAccepted{OldAdmin: oldAdmin, NewAdmin: caller})
	return nil
}
