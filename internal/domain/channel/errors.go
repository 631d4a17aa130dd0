package channel

import "errors"

var (
	// Platform call errors, classified by the resilience layer
	ErrPlatformUnavailable      = errors.New("channel: platform temporarily unavailable")
	ErrPlatformTimeout          = errors.New("channel: platform request timed out")
	ErrPlatformRateLimited      = errors.New("channel: platform rate limited")
	ErrPlatformRequestFailed    = errors.New("channel: platform request failed")
	ErrPlatformInvalidResponse  = errors.New("channel: invalid platform response")
	ErrPlatformAuthFailed       = errors.New("channel: platform authentication failed")
	ErrPlatformTokenExpired     = errors.New("channel: platform token expired")
	ErrPlatformInvalidSignature = errors.New("channel: invalid platform signature")

	// Configuration errors
	ErrInvalidPlatformCode   = errors.New("channel: invalid platform code")
	ErrPlatformNotRegistered = errors.New("channel: no adapter registered for platform")
	ErrChannelNotFound       = errors.New("channel: channel not found")
	ErrChannelInactive       = errors.New("channel: channel is not active")

	// Order lookup errors
	ErrExternalOrderNotFound = errors.New("channel: external order not found")
)
