package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is invalid")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- search service ------------------
var (
	ErrUnknownConnector    = errors.New("unknown connector")
	ErrConnectorDisabled   = errors.New("connector is disabled")
	ErrEmptyQuery          = errors.New("part number is empty")
	ErrInvalidNestedLevel  = errors.New("nested level must be -1 or greater")
	ErrInvalidMaxAlts      = errors.New("max alternatives must not be negative")
	ErrSearchNotFound      = errors.New("search not found")
	ErrSearchNotPending    = errors.New("search is not pending")
	ErrNoConnectors        = errors.New("no connectors available")
	ErrStorageNotAvailable = errors.New("storage is not configured")
	ErrQueueNotAvailable   = errors.New("message queue is not configured")
	ErrSearchLocked        = errors.New("search is being processed")
)

// ----------------- connectors ------------------
var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
