// Copyright 2025 James Ross
package episode

import "encoding/json"

// ConnectionKind enumerates the kinds of cross-episode connections.
type ConnectionKind string

const (
	ConnectionCharacter ConnectionKind = "character"
	ConnectionEvent     ConnectionKind = "event"
	ConnectionStoryline ConnectionKind = "storyline"
	ConnectionReference ConnectionKind = "reference"
)

// Connection is a cross-episode connection to another episode.
type Connection struct {
	TargetEpisodeID string         `json:"targetEpisodeId"`
	TargetSeriesID  string         `json:"targetSeriesId"`
	Kind            ConnectionKind `json:"kind"`
	Description     string         `json:"description"`
}

// Record is the canonical, fully-populated episode record.
type Record struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Season   int    `json:"season"`
	Episode  int    `json:"episode"`
	AirDate  string `json:"airDate"` // YYYY-MM-DD
	Synopsis string `json:"synopsis"`

	PlotPoints  []string     `json:"plotPoints"`
	GuestStars  []string     `json:"guestStars"`
	Connections []Connection `json:"connections"`

	ProductionCode string   `json:"productionCode,omitempty"`
	Directors      []string `json:"directors,omitempty"`
	Writers        []string `json:"writers,omitempty"`

	TMDBID         int    `json:"tmdbId,omitempty"`
	IMDBID         string `json:"imdbId,omitempty"`
	MemoryAlphaURL string `json:"memoryAlphaUrl,omitempty"`
}

// Marshal serializes the record to JSON.
func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record from JSON.
func Unmarshal(b []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(b, &r)
	return r, err
}
