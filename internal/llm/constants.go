package llm

import "time"

// Shared by the provider clients.
const (
	defaultTimeout    = 120 * time.Second
	maxRetries        = 3
	initialRetryDelay = 2 * time.Second
	maxRetryDelay     = 30 * time.Second
	defaultMaxTokens  = 4096
)
