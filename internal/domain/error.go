package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrAlreadyExists         = errors.New("entity already exists")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrInvalidPlanName       = errors.New("invalid plan name")
	ErrEmptyPayload          = errors.New("empty payload")
	ErrOperationFailed       = errors.New("operation failed")
	ErrRegistrationCancelled = errors.New("service registration cancelled")
	ErrSessionInactive       = errors.New("session timed out due to inactivity")
	ErrSessionClosed         = errors.New("session closed")
	ErrUnknownDriver         = errors.New("unknown driver")
	ErrDriverNotStandalone   = errors.New("driver cannot serve a standalone process")
	ErrBusClosed             = errors.New("bus closed")
)
