// Copyright 2025 James Ross

// Package providers implements the Provider Client from spec §4.4: one
// client per metadata source, each wrapping a RateLimiter + Retry Policy
// + Request Cache around a provider-specific URL builder and response
// parser. Grounded on the FitGlue Provider interface shape
// (other_examples/bd11c739_FitGlue-server..._interfaces.go.go — small,
// declarative, single-method provider interfaces) and on the teacher's
// internal/worker/worker.go for the retry/breaker/observability dispatch
// style each client's Fetch wraps around a single external call.
package providers

import (
	"context"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/quality"
)

// Reliability mirrors quality.Reliability so provider declarations don't
// need to import the quality package just for this one type alias.
type Reliability = quality.Reliability

// Profile is what a provider declares about itself per spec §4.4:
// baseline confidence, reliability, the fields it can supply, and
// whether it's currently available (derived from config/credentials).
type Profile struct {
	Source          episode.Source
	ConfidenceLevel float64
	Reliability     Reliability
	SupportedFields []string
	Available       bool
}

// Client is the uniform provider operation from spec §4.4: fetch a
// Provider Record for an episode, or (nil, nil) when the provider has no
// data or declined — not an error. Unexpected errors propagate.
type Client interface {
	Profile() Profile
	FetchEpisode(ctx context.Context, id episode.ID) (*episode.ProviderRecord, error)
}
