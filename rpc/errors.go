package rpc

import (
	"errors"
	"net/http"

	"trustrent/core"
	"trustrent/core/pricing"
	"trustrent/native/bank"
	"trustrent/native/certificate"
	"trustrent/native/common"
	"trustrent/native/rental"
)

// toRPCError maps domain failures onto JSON-RPC error codes.
func toRPCError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var authErr *rental.AuthorizationError
	var stateErr *rental.StateError
	switch {
	case errors.Is(err, common.ErrModulePaused):
		return newError(http.StatusConflict, codePaused, "module paused", nil)
	case errors.As(err, &authErr):
		return newError(http.StatusForbidden, codeForbidden, err.Error(), map[string]string{
			"action": authErr.Action,
			"role":   string(authErr.Role),
		})
	case errors.Is(err, certificate.ErrNotOwner):
		return newError(http.StatusForbidden, codeForbidden, err.Error(), nil)
	case errors.As(err, &stateErr):
		return newError(http.StatusConflict, codeInvalidState, err.Error(), map[string]string{
			"action": stateErr.Action,
			"status": stateErr.Status.String(),
		})
	case errors.Is(err, rental.ErrOverlapBooking):
		return newError(http.StatusConflict, codeOverlap, rental.ErrOverlapBooking.Error(), nil)
	case errors.Is(err, rental.ErrInsufficientFunds),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrInsufficientAllowance):
		return newError(http.StatusConflict, codeInsufficientFunds, err.Error(), nil)
	case errors.Is(err, rental.ErrExceedEscrow):
		return newError(http.StatusConflict, codeExceedEscrow, rental.ErrExceedEscrow.Error(), nil)
	case errors.Is(err, rental.ErrNothingToRelease):
		return newError(http.StatusConflict, codeNothingToRelease, err.Error(), nil)
	case errors.Is(err, rental.ErrListingNotFound),
		errors.Is(err, rental.ErrBookingNotFound),
		errors.Is(err, certificate.ErrNotFound):
		return newError(http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.Is(err, rental.ErrInvalidPrice),
		errors.Is(err, rental.ErrNegativePrice),
		errors.Is(err, rental.ErrInvalidInterval),
		errors.Is(err, rental.ErrInvalidAmount),
		errors.Is(err, rental.ErrMetadataTooLong),
		errors.Is(err, rental.ErrTermsTooLong),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrBalanceOverflow),
		errors.Is(err, certificate.ErrZeroAddress),
		errors.Is(err, pricing.ErrInvalidMonths):
		return invalidParams(err.Error())
	case errors.Is(err, core.ErrFaucetDisabled),
		errors.Is(err, pricing.ErrFeedNotConfigured),
		errors.Is(err, rental.ErrArbiterNotConfig):
		return newError(http.StatusServiceUnavailable, codeServerError, err.Error(), nil)
	default:
		return newError(http.StatusInternalServerError, codeServerError, "internal error", err.Error())
	}
}
