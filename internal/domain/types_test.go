package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeStage(t *testing.T) {
	if got := NormalizeStage("weather"); got != StageWeather {
		t.Errorf("NormalizeStage(weather) = %q", got)
	}
	for _, s := range []Stage{"", "tutorial_intro", "add_zips", "bogus"} {
		if got := NormalizeStage(s); got != StageIntro {
			t.Errorf("NormalizeStage(%q) = %q, want intro", s, got)
		}
	}
}

func TestAddZip(t *testing.T) {
	var s Session

	for _, zip := range []string{"48103", "48104", "48105", "48106", "48107"} {
		if !s.AddZip(zip) {
			t.Fatalf("AddZip(%q) = false, want true", zip)
		}
	}
	if s.AddZip("48103") {
		t.Error("duplicate AddZip returned true")
	}
	if s.AddZip("48108") {
		t.Error("AddZip past the cap returned true")
	}
	want := []string{"48103", "48104", "48105", "48106", "48107"}
	if !reflect.DeepEqual(s.Zips, want) {
		t.Errorf("Zips = %v, want %v", s.Zips, want)
	}
}

func TestChartMetricsMarshalFlat(t *testing.T) {
	m := ChartMetrics{
		Labels:   []string{"2024-01"},
		Datasets: []Dataset{{Label: "ZIP 48109", Data: []float64{3}}},
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"labels":["2024-01"],"datasets":[{"label":"ZIP 48109","data":[3]}]}`
	if string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}

	var back ChartMetrics
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(back.Datasets) != 1 || back.Grouped != nil {
		t.Errorf("round trip = %+v, want flat datasets", back)
	}
}

func TestChartMetricsMarshalGrouped(t *testing.T) {
	m := ChartMetrics{
		Labels: []string{"48109"},
		Grouped: [][]Dataset{
			{{Label: "Median Income", Data: []float64{61000}}},
			{{Label: "Poverty Rate (%)", Data: []float64{12.5}}},
		},
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back ChartMetrics
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(back.Grouped) != 2 || back.Datasets != nil {
		t.Errorf("round trip = %+v, want grouped datasets", back)
	}
	if back.Grouped[1][0].Label != "Poverty Rate (%)" {
		t.Errorf("grouped label = %q", back.Grouped[1][0].Label)
	}
}

func TestChartMetricsMarshalEmpty(t *testing.T) {
	// The frontend expects an array under "datasets", never null, even
	// when neither Datasets nor Grouped is set.
	b, err := json.Marshal(ChartMetrics{Labels: []string{}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"labels":[],"datasets":[]}` {
		t.Errorf("Marshal() = %s", b)
	}

	b, err = json.Marshal(ChartMetrics{})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(b), `"datasets":null`) {
		t.Errorf("Marshal() of zero value = %s, datasets must be an array", b)
	}
}

func TestStageResultHasMetrics(t *testing.T) {
	if (StageResult{Seed: "text"}).HasMetrics() {
		t.Error("seed-only result reported metrics")
	}
	if (StageResult{Metrics: &ChartMetrics{}}).HasMetrics() {
		t.Error("result without visualization reported metrics")
	}
	r := StageResult{Visualization: VizTopAffected, Metrics: &ChartMetrics{}}
	if !r.HasMetrics() {
		t.Error("complete result did not report metrics")
	}
}
