package domain

import "errors"

var (
	// ErrExternalAPI marks network failures and non-2xx responses from the task API.
	ErrExternalAPI = errors.New("external api error")
	// ErrPersistence marks failed store reads or writes.
	ErrPersistence = errors.New("persistence error")
	// ErrConfiguration marks a missing credential or required parameter.
	ErrConfiguration = errors.New("configuration error")
)
