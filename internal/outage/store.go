// Package outage is the read-only query layer over the joined
// outage/weather/demographic records table. It never writes to the
// table; EnsureSchema exists for tests and local seeding only.
package outage

import (
	"context"
	"fmt"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/gridlens/outage-insight/internal/domain"
)

// censusSentinel is the value the upstream census join uses for
// "no data" in income, poverty, and age columns.
const censusSentinel = -666666666

// Store runs the aggregation queries backing the tutorial stages plus
// the map and date-range endpoints.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New opens the outage records database.
func New(cfg Config) (*Store, error) {
	d, err := DialectFromDriver(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	return &Store{db: db, dialect: d}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the records table when missing. Production
// points at an existing, externally-loaded table; this is for tests
// and local development seeding.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS outage_records (
id TEXT PRIMARY KEY,
zip_code TEXT NOT NULL,
city TEXT NOT NULL,
latitude REAL,
longitude REAL,
occurred_at TIMESTAMP NOT NULL,
customers_affected INTEGER NOT NULL DEFAULT 0,
cause TEXT,
temperature REAL,
wind_speed REAL,
wind_gusts REAL,
precipitation REAL,
snowfall REAL,
median_income REAL,
poverty_rate_raw REAL,
median_age REAL,
total_population INTEGER,
white_alone INTEGER,
black_alone INTEGER,
hispanic_latino INTEGER
)`,
		`CREATE INDEX IF NOT EXISTS idx_outage_records_zip ON outage_records(zip_code)`,
		`CREATE INDEX IF NOT EXISTS idx_outage_records_occurred ON outage_records(occurred_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

type monthlyCountRow struct {
	ZipCode string `db:"zip_code"`
	Month   string `db:"month"`
	Outages int    `db:"outages"`
}

// ComparisonByMonth counts outages per ZIP per calendar month across
// each ZIP's full history. Months present for one ZIP but not another
// are zero-filled so every series shares the same labels. Returns nil
// metrics when the selection matches nothing.
func (s *Store) ComparisonByMonth(ctx context.Context, zips []string) (*domain.ChartMetrics, error) {
	if len(zips) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(fmt.Sprintf(`
		SELECT zip_code, %s AS month, COUNT(*) AS outages
		FROM outage_records
		WHERE zip_code IN (?)
		GROUP BY zip_code, month
		ORDER BY month, zip_code`, s.dialect.MonthBucket("occurred_at")), zips)
	if err != nil {
		return nil, fmt.Errorf("failed to expand zip list: %w", err)
	}

	var rows []monthlyCountRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query monthly comparison: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Shared month labels in chronological order, one series per ZIP.
	var labels []string
	seen := make(map[string]bool)
	series := make(map[string]map[string]int)
	var zipOrder []string
	for _, row := range rows {
		if !seen[row.Month] {
			seen[row.Month] = true
			labels = append(labels, row.Month)
		}
		if _, ok := series[row.ZipCode]; !ok {
			series[row.ZipCode] = make(map[string]int)
			zipOrder = append(zipOrder, row.ZipCode)
		}
		series[row.ZipCode][row.Month] = row.Outages
	}
	sort.Strings(zipOrder)

	datasets := make([]domain.Dataset, 0, len(zipOrder))
	for _, zip := range zipOrder {
		data := make([]float64, len(labels))
		for i, month := range labels {
			data[i] = float64(series[zip][month])
		}
		datasets = append(datasets, domain.Dataset{Label: "ZIP " + zip, Data: data})
	}

	return &domain.ChartMetrics{Labels: labels, Datasets: datasets}, nil
}

type correlationRow struct {
	ZipCode      string  `db:"zip_code"`
	MedianIncome float64 `db:"median_income"`
	PovertyRate  float64 `db:"poverty_rate"`
	MedianAge    float64 `db:"median_age"`
	WhitePct     float64 `db:"white_pct"`
	BlackPct     float64 `db:"black_pct"`
	HispanicPct  float64 `db:"hispanic_pct"`
	Outages      float64 `db:"outages"`
}

// Correlations aggregates socioeconomic measures and outage counts per
// ZIP. The result is two grouped sub-charts: income and outage counts
// sit an order of magnitude above the percentage measures and would
// make a single chart unreadable.
func (s *Store) Correlations(ctx context.Context, zips []string) (*domain.ChartMetrics, error) {
	if len(zips) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(fmt.Sprintf(`
		SELECT
			zip_code,
			ROUND(COALESCE(AVG(NULLIF(median_income, %d)), 0), 0) AS median_income,
			ROUND(COALESCE(AVG(NULLIF(poverty_rate_raw, %d)) / 10.0, 0), 1) AS poverty_rate,
			ROUND(COALESCE(AVG(NULLIF(median_age, %d)), 0), 1) AS median_age,
			ROUND(COALESCE(100.0 * SUM(white_alone) / NULLIF(SUM(total_population), 0), 0), 1) AS white_pct,
			ROUND(COALESCE(100.0 * SUM(black_alone) / NULLIF(SUM(total_population), 0), 0), 1) AS black_pct,
			ROUND(COALESCE(100.0 * SUM(hispanic_latino) / NULLIF(SUM(total_population), 0), 0), 1) AS hispanic_pct,
			COUNT(*) AS outages
		FROM outage_records
		WHERE zip_code IN (?)
		GROUP BY zip_code
		ORDER BY zip_code`, censusSentinel, censusSentinel, censusSentinel), zips)
	if err != nil {
		return nil, fmt.Errorf("failed to expand zip list: %w", err)
	}

	var rows []correlationRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query correlations: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	labels := make([]string, len(rows))
	income := make([]float64, len(rows))
	outages := make([]float64, len(rows))
	poverty := make([]float64, len(rows))
	age := make([]float64, len(rows))
	white := make([]float64, len(rows))
	black := make([]float64, len(rows))
	hispanic := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = row.ZipCode
		income[i] = row.MedianIncome
		outages[i] = row.Outages
		poverty[i] = row.PovertyRate
		age[i] = row.MedianAge
		white[i] = row.WhitePct
		black[i] = row.BlackPct
		hispanic[i] = row.HispanicPct
	}

	return &domain.ChartMetrics{
		Labels: labels,
		Grouped: [][]domain.Dataset{
			{
				{Label: "Median Income", Data: income},
				{Label: "Outages", Data: outages},
			},
			{
				{Label: "Poverty Rate (%)", Data: poverty},
				{Label: "Median Age", Data: age},
				{Label: "White (%)", Data: white},
				{Label: "Black (%)", Data: black},
				{Label: "Hispanic (%)", Data: hispanic},
			},
		},
	}, nil
}

type weatherRow struct {
	ZipCode       string  `db:"zip_code"`
	AvgTemp       float64 `db:"avg_temp"`
	AvgWind       float64 `db:"avg_wind"`
	MaxGust       float64 `db:"max_gust"`
	TotalPrecip   float64 `db:"total_precip"`
	TotalSnowfall float64 `db:"total_snowfall"`
}

// WeatherImpact aggregates the joined weather observations per ZIP.
func (s *Store) WeatherImpact(ctx context.Context, zips []string) (*domain.ChartMetrics, error) {
	if len(zips) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT
			zip_code,
			ROUND(COALESCE(AVG(temperature), 0), 1) AS avg_temp,
			ROUND(COALESCE(AVG(wind_speed), 0), 1) AS avg_wind,
			ROUND(COALESCE(MAX(wind_gusts), 0), 1) AS max_gust,
			ROUND(COALESCE(SUM(precipitation), 0), 1) AS total_precip,
			ROUND(COALESCE(SUM(snowfall), 0), 1) AS total_snowfall
		FROM outage_records
		WHERE zip_code IN (?)
		GROUP BY zip_code
		ORDER BY zip_code`, zips)
	if err != nil {
		return nil, fmt.Errorf("failed to expand zip list: %w", err)
	}

	var rows []weatherRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query weather impact: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	labels := make([]string, len(rows))
	temp := make([]float64, len(rows))
	wind := make([]float64, len(rows))
	gust := make([]float64, len(rows))
	precip := make([]float64, len(rows))
	snow := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = row.ZipCode
		temp[i] = row.AvgTemp
		wind[i] = row.AvgWind
		gust[i] = row.MaxGust
		precip[i] = row.TotalPrecip
		snow[i] = row.TotalSnowfall
	}

	return &domain.ChartMetrics{
		Labels: labels,
		Datasets: []domain.Dataset{
			{Label: "Avg Temp (°F)", Data: temp},
			{Label: "Avg Wind (m/s)", Data: wind},
			{Label: "Max Gust (m/s)", Data: gust},
			{Label: "Precipitation (mm)", Data: precip},
			{Label: "Snowfall (cm)", Data: snow},
		},
	}, nil
}

type topAffectedRow struct {
	ZipCode   string  `db:"zip_code"`
	City      string  `db:"city"`
	Customers float64 `db:"customers"`
}

// TopAffected returns the five (ZIP, city) pairs with the most total
// customers affected. Equal totals are ordered by ZIP code ascending
// so the ranking is stable across runs.
func (s *Store) TopAffected(ctx context.Context, zips []string) (*domain.ChartMetrics, error) {
	if len(zips) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT
			zip_code,
			city,
			COALESCE(SUM(customers_affected), 0) AS customers
		FROM outage_records
		WHERE zip_code IN (?)
		GROUP BY zip_code, city
		ORDER BY customers DESC, zip_code ASC
		LIMIT 5`, zips)
	if err != nil {
		return nil, fmt.Errorf("failed to expand zip list: %w", err)
	}

	var rows []topAffectedRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query top affected areas: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	labels := make([]string, len(rows))
	customers := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = fmt.Sprintf("%s (%s)", row.City, row.ZipCode)
		customers[i] = row.Customers
	}

	return &domain.ChartMetrics{
		Labels: labels,
		Datasets: []domain.Dataset{
			{Label: "Customers Affected", Data: customers},
		},
	}, nil
}

// DateRange returns the timestamp span across all records.
func (s *Store) DateRange(ctx context.Context) (minDate, maxDate time.Time, err error) {
	var row struct {
		Min *string `db:"min_date"`
		Max *string `db:"max_date"`
	}
	query := s.dialect.Rebind(`SELECT MIN(occurred_at) AS min_date, MAX(occurred_at) AS max_date FROM outage_records`)
	if err := s.db.GetContext(ctx, &row, query); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to query date range: %w", err)
	}
	if row.Min == nil || row.Max == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("no outage records")
	}
	if minDate, err = parseTimestamp(*row.Min); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if maxDate, err = parseTimestamp(*row.Max); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return minDate, maxDate, nil
}

// Timestamps are stored as ISO-8601 text so lexicographic comparison
// matches chronological order across both dialects.
var timestampLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
