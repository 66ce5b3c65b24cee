package client

import "errors"

var (
	// ErrAuthorization covers rejected or missing credentials.
	ErrAuthorization = errors.New("authorization failed")
	// ErrAuthorizationRequired is returned when an operation needs an
	// authorized session that has not been established yet.
	ErrAuthorizationRequired = errors.New("authorization required")
	// ErrAccountNotFound means the requested account is not bound to
	// the login, or no primary account is bound at all.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountBinding means the portal accepted a bind/unbind post
	// but the re-parsed account list does not reflect it.
	ErrAccountBinding = errors.New("account binding failed")
	// ErrParsing covers server responses of an unexpected shape.
	ErrParsing = errors.New("unexpected server response")
	// ErrValidation covers bad caller input rejected before any
	// mutation is posted.
	ErrValidation = errors.New("invalid value")
	// ErrMeterNotFound means a submitted reading references a device
	// id the portal does not list for the account.
	ErrMeterNotFound = errors.New("meter not found")
)
