// Copyright 2025 James Ross
package episode

import "time"

// FieldValidation is a Field Validation Entry (spec §3): whether a field
// value passed validation, who validated it, and when.
type FieldValidation struct {
	IsValid     bool      `json:"isValid"`
	Source      Source    `json:"source"`
	ValidatedAt time.Time `json:"validatedAt"`
	Error       string    `json:"error,omitempty"`
}

// ProviderRecord is a Provider Record: a partial Episode Record as
// returned by a single provider, plus its provenance. Every field below
// is optional except ID/Source/FetchedAt — providers supply whatever
// subset they can.
type ProviderRecord struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	FetchedAt time.Time `json:"fetchedAt"`

	Title    *string `json:"title,omitempty"`
	Season   *int    `json:"season,omitempty"`
	Episode  *int    `json:"episode,omitempty"`
	AirDate  *string `json:"airDate,omitempty"`
	Synopsis *string `json:"synopsis,omitempty"`

	PlotPoints  []string     `json:"plotPoints,omitempty"`
	GuestStars  []string     `json:"guestStars,omitempty"`
	Connections []Connection `json:"connections,omitempty"`

	ProductionCode *string  `json:"productionCode,omitempty"`
	Directors      []string `json:"directors,omitempty"`
	Writers        []string `json:"writers,omitempty"`

	TMDBID         *int    `json:"tmdbId,omitempty"`
	IMDBID         *string `json:"imdbId,omitempty"`
	MemoryAlphaURL *string `json:"memoryAlphaUrl,omitempty"`

	Validations map[string]FieldValidation `json:"validations,omitempty"`
}

// FieldNames lists every field a ProviderRecord can carry, used by the
// Quality Scorer's completeness calculation and the Merger's per-field
// resolution loop.
var FieldNames = []string{
	"title", "airDate", "season", "episode", "synopsis",
	"writers", "directors", "plotPoints",
	"productionCode", "guestStars", "tmdbId", "imdbId",
	"memoryAlphaUrl", "connections",
}

// ExpectedFieldNames lists the fields a Unified Metadata record is
// expected to carry; the Merger's confidence score is the fraction of
// these (not the full optional FieldNames set) with a resolved value.
var ExpectedFieldNames = []string{
	"title", "season", "episode", "airDate",
	"synopsis", "plotPoints", "guestStars", "connections",
}

// Present reports whether field has a non-empty value on r.
func (r ProviderRecord) Present(field string) bool {
	switch field {
	case "title":
		return r.Title != nil && *r.Title != ""
	case "airDate":
		return r.AirDate != nil && *r.AirDate != ""
	case "season":
		return r.Season != nil
	case "episode":
		return r.Episode != nil
	case "synopsis":
		return r.Synopsis != nil && *r.Synopsis != ""
	case "writers":
		return len(r.Writers) > 0
	case "directors":
		return len(r.Directors) > 0
	case "plotPoints":
		return len(r.PlotPoints) > 0
	case "productionCode":
		return r.ProductionCode != nil && *r.ProductionCode != ""
	case "guestStars":
		return len(r.GuestStars) > 0
	case "tmdbId":
		return r.TMDBID != nil
	case "imdbId":
		return r.IMDBID != nil && *r.IMDBID != ""
	case "memoryAlphaUrl":
		return r.MemoryAlphaURL != nil && *r.MemoryAlphaURL != ""
	case "connections":
		return len(r.Connections) > 0
	default:
		return false
	}
}
