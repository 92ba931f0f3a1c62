// Package domain holds the core types shared across the dashboard:
// tutorial stages, sessions, chat messages, and chart metrics.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage is a step in the fixed tutorial sequence.
type Stage string

const (
	StageIntro          Stage = "intro"
	StageCollectingZips Stage = "collecting_zips"
	StageCorrelations   Stage = "correlations"
	StageWeather        Stage = "weather"
	StageTopAreas       Stage = "top_areas"
	StageEnd            Stage = "end"
)

// Valid reports whether s is a known tutorial stage.
func (s Stage) Valid() bool {
	switch s {
	case StageIntro, StageCollectingZips, StageCorrelations, StageWeather, StageTopAreas, StageEnd:
		return true
	}
	return false
}

// NormalizeStage maps unknown stage values back to the intro stage.
// Sessions restored from an older deployment may carry stage names that
// no longer exist; resetting is the recovery path, not an error.
func NormalizeStage(s Stage) Stage {
	if !s.Valid() {
		return StageIntro
	}
	return s
}

// MaxZips caps how many ZIP codes a session may accumulate.
const MaxZips = 5

// Session tracks one client's progress through the tutorial.
type Session struct {
	Key       string    `json:"key"`
	Stage     Stage     `json:"stage"`
	Zips      []string  `json:"zips"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddZip appends zip preserving insertion order. Duplicates and adds
// past MaxZips are ignored; the return value reports whether the list
// changed.
func (s *Session) AddZip(zip string) bool {
	if len(s.Zips) >= MaxZips {
		return false
	}
	for _, z := range s.Zips {
		if z == zip {
			return false
		}
	}
	s.Zips = append(s.Zips, zip)
	return true
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a session's conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Visualization tags a metrics payload with the chart the frontend
// should render for it.
type Visualization string

const (
	VizOutageTimeseries Visualization = "outage_timeseries"
	VizCorrelations     Visualization = "socioeconomic_correlations"
	VizWeatherImpact    Visualization = "weather_impact"
	VizTopAffected      Visualization = "top_affected"
)

// Dataset is one labelled series within a chart.
type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// ChartMetrics is a chart-ready payload. Exactly one of Datasets
// (flat) or Grouped (list-of-lists, used when a stage produces more
// than one logical chart) is populated; both encode to the "datasets"
// JSON key so the wire shape matches what the frontend expects.
type ChartMetrics struct {
	Labels   []string
	Datasets []Dataset
	Grouped  [][]Dataset
}

func (m ChartMetrics) MarshalJSON() ([]byte, error) {
	// The frontend expects "datasets" to always be an array, never null.
	var datasets any
	switch {
	case len(m.Grouped) > 0:
		datasets = m.Grouped
	case m.Datasets != nil:
		datasets = m.Datasets
	default:
		datasets = []Dataset{}
	}
	return json.Marshal(struct {
		Labels   []string `json:"labels"`
		Datasets any      `json:"datasets"`
	}{Labels: m.Labels, Datasets: datasets})
}

func (m *ChartMetrics) UnmarshalJSON(data []byte) error {
	var raw struct {
		Labels   []string        `json:"labels"`
		Datasets json.RawMessage `json:"datasets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Labels = raw.Labels
	m.Datasets = nil
	m.Grouped = nil
	if len(raw.Datasets) == 0 {
		return nil
	}

	var flat []Dataset
	if err := json.Unmarshal(raw.Datasets, &flat); err == nil {
		m.Datasets = flat
		return nil
	}
	var grouped [][]Dataset
	if err := json.Unmarshal(raw.Datasets, &grouped); err != nil {
		return fmt.Errorf("datasets is neither flat nor grouped: %w", err)
	}
	m.Grouped = grouped
	return nil
}

// StageResult is what a tutorial stage produces for one turn: a
// narration seed (canned text or the lead-in for the LLM), and chart
// data when the stage is data-bearing. Metrics stays nil for pure
// tutorial steps and for stages whose query failed.
type StageResult struct {
	Seed          string
	Visualization Visualization
	Metrics       *ChartMetrics
}

// HasMetrics reports whether the result carries chart data that should
// be narrated by the language model.
func (r StageResult) HasMetrics() bool {
	return r.Metrics != nil && r.Visualization != ""
}

// ChatResponse is the wire shape of POST /api/chat.
type ChatResponse struct {
	Reply         string         `json:"reply"`
	Zips          []string       `json:"zips"`
	Visualization *Visualization `json:"visualization"`
	Metrics       *ChartMetrics  `json:"metrics"`
}
