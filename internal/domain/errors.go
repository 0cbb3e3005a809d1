package domain

import "errors"

// Error taxonomy.
//
// Configuration errors are fatal to the rule store and must reach
// startup/reload callers. Everything else in the scoring path is
// recovered locally: a failing condition counts as not triggered, a
// failing aggregation yields the zero assessment, and a failing
// explanation provider yields the deterministic fallback text.
var (
	// ErrConfiguration signals a missing or malformed rule or
	// reference source. Never run with a partial rule set.
	ErrConfiguration = errors.New("configuration error")

	// ErrExplanationProvider signals a failed or timed-out
	// text-generation call. Recovered with the local fallback.
	ErrExplanationProvider = errors.New("explanation provider error")

	// ErrNotFound signals a missing record in the repository or a
	// missing key in the explanation cache.
	ErrNotFound = errors.New("not found")
)
