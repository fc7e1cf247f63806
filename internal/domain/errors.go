package domain

import "errors"

var (
	// ErrSourceUnavailable means no peers or metadata arrived within the
	// open timeout. Fatal to this attempt; the caller may offer another source.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNoPlayableFile means the source contains no recognizable media file.
	ErrNoPlayableFile = errors.New("no playable file in source")

	// ErrPortInUse means the local stream server could not bind any of the
	// configured ports.
	ErrPortInUse = errors.New("stream port in use")

	// ErrBufferTimeout means the readiness gate gave up waiting for enough
	// contiguous data at the requested offset.
	ErrBufferTimeout = errors.New("buffer timeout")

	// ErrStorage covers disk-full and permission failures in the temp
	// storage directory.
	ErrStorage = errors.New("storage error")

	// ErrDebridAuth means the premium resolution service rejected the API key.
	ErrDebridAuth = errors.New("debrid authentication failed")

	// ErrPlayerNotFound means the configured player binary is not installed.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrSessionClosed is returned by operations against a closed stream session.
	ErrSessionClosed = errors.New("session closed")

	// ErrNoActiveSession is returned when a playback operation needs an
	// active session and none exists.
	ErrNoActiveSession = errors.New("no active session")

	ErrNotFound = errors.New("not found")
)
