package errors

import "errors"

// ----------------- cache ------------------
var (
	// ErrCacheMiss возвращается, когда ключ отсутствует в кэше
	ErrCacheMiss = errors.New("cache miss")
	// ErrLockNotHeld возвращается при попытке снять чужую или истекшую блокировку
	ErrLockNotHeld = errors.New("lock is not held")
)

// ----------------- messaging ------------------
var (
	ErrMessagingClosed = errors.New("messaging client is closed")
)

// ----------------- auth ------------------
var (
	ErrMissingToken = errors.New("authorization token is missing")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)
