package domain

import "errors"

var (
	// ErrUnknownEndpoint is a configuration fault: a watch polls an endpoint missing from the quota table
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrUnknownAccount is returned when no credential is registered for an account
	ErrUnknownAccount = errors.New("unknown account")

	// ErrRateLimited is returned when the remote API refused a call for quota reasons
	ErrRateLimited = errors.New("rate limited by remote")

	// ErrFatal marks faults the poll loop cannot continue after
	ErrFatal = errors.New("fatal scheduler fault")
)
