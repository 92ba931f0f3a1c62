package outage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Record is one outage event with its joined weather and demographic
// fields, as exposed in GeoJSON feature properties.
type Record struct {
	ID                string   `db:"id" json:"id"`
	ZipCode           string   `db:"zip_code" json:"zip_code"`
	City              string   `db:"city" json:"city"`
	Latitude          *float64 `db:"latitude" json:"-"`
	Longitude         *float64 `db:"longitude" json:"-"`
	OccurredAt        string   `db:"occurred_at" json:"occurred_at"`
	CustomersAffected int64    `db:"customers_affected" json:"customers_affected"`
	Cause             *string  `db:"cause" json:"cause"`
	Temperature       *float64 `db:"temperature" json:"temperature"`
	WindSpeed         *float64 `db:"wind_speed" json:"wind_speed"`
	WindGusts         *float64 `db:"wind_gusts" json:"wind_gusts"`
	Precipitation     *float64 `db:"precipitation" json:"precipitation"`
	Snowfall          *float64 `db:"snowfall" json:"snowfall"`
	MedianIncome      *float64 `db:"median_income" json:"median_income"`
	PovertyRateRaw    *float64 `db:"poverty_rate_raw" json:"poverty_rate_raw"`
	MedianAge         *float64 `db:"median_age" json:"median_age"`
	TotalPopulation   *int64   `db:"total_population" json:"total_population"`
	WhiteAlone        *int64   `db:"white_alone" json:"white_alone"`
	BlackAlone        *int64   `db:"black_alone" json:"black_alone"`
	HispanicLatino    *int64   `db:"hispanic_latino" json:"hispanic_latino"`
}

// Geometry is a GeoJSON point.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

// Feature is a GeoJSON feature wrapping one outage record.
type Feature struct {
	Type       string   `json:"type"`
	Geometry   Geometry `json:"geometry"`
	Properties Record   `json:"properties"`
}

// FeatureCollection is the wire shape of GET /api/outages.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Filter narrows the records returned by FeatureCollection.
type Filter struct {
	Start time.Time
	End   time.Time
	Cause string // case-insensitive substring
	Zips  []string
}

// FeatureCollection returns matching records as GeoJSON points. Rows
// without geometry are skipped; no matches yields an empty collection,
// not an error.
func (s *Store) FeatureCollection(ctx context.Context, f Filter) (*FeatureCollection, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, zip_code, city, latitude, longitude, occurred_at, customers_affected,
		       cause, temperature, wind_speed, wind_gusts, precipitation, snowfall,
		       median_income, poverty_rate_raw, median_age, total_population,
		       white_alone, black_alone, hispanic_latino
		FROM outage_records
		WHERE occurred_at BETWEEN ? AND ?
		  AND latitude IS NOT NULL AND longitude IS NOT NULL`)
	args := []any{
		f.Start.UTC().Format(time.RFC3339),
		f.End.UTC().Format(time.RFC3339),
	}

	if f.Cause != "" {
		fmt.Fprintf(&sb, " AND cause %s ?", s.dialect.CaseInsensitiveLike())
		args = append(args, "%"+f.Cause+"%")
	}
	if len(f.Zips) > 0 {
		sb.WriteString(" AND zip_code IN (?)")
		args = append(args, f.Zips)
	}
	sb.WriteString(" ORDER BY occurred_at")

	query, args, err := sqlx.In(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to expand filter: %w", err)
	}

	var records []Record
	if err := s.db.SelectContext(ctx, &records, s.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query outage records: %w", err)
	}

	fc := &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
	for _, rec := range records {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{*rec.Longitude, *rec.Latitude},
			},
			Properties: rec,
		})
	}
	return fc, nil
}
