package domain

import "errors"

var (
	// ErrEngineInit is returned when the text extraction engine cannot start
	ErrEngineInit = errors.New("extraction engine initialization failed")

	// ErrExtraction is returned when text recognition fails on a specific image
	ErrExtraction = errors.New("text extraction failed")

	// ErrAIService is the generic AI service failure
	ErrAIService = errors.New("AI service request failed")

	// ErrAICredentialMissing is returned when no AI credential is configured or it is rejected
	ErrAICredentialMissing = errors.New("AI credential missing or invalid")

	// ErrAIRateLimited is returned when the AI service rate limit is exceeded
	ErrAIRateLimited = errors.New("AI service rate limited")

	// ErrAIQuotaExceeded is returned when the AI account quota is exhausted
	ErrAIQuotaExceeded = errors.New("AI service quota exceeded")

	// ErrAIMalformedResponse is returned when the AI response cannot be decoded or fails schema checks
	ErrAIMalformedResponse = errors.New("AI response malformed")

	// ErrMatcherNotReady is returned when matching is attempted before the registry snapshot is loaded
	ErrMatcherNotReady = errors.New("compound registry not loaded")

	// ErrRegistryFailure is returned when a compound registry request fails
	ErrRegistryFailure = errors.New("compound registry request failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// Stage-tagged scan failures. The orchestrator wraps the originating error so
// callers can tell "scan failed, retry" apart from "succeeded with low
// confidence" (the latter is data, never an error).
var (
	ErrStageExtraction = errors.New("scan failed at text extraction")
	ErrStageParsing    = errors.New("scan failed at ingredient parsing")
	ErrStageMatching   = errors.New("scan failed at compound matching")
	ErrStageAnalysis   = errors.New("scan failed at safety analysis")
)
