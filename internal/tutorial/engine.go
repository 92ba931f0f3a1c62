// Package tutorial drives the guided walkthrough state machine: each
// chat turn is interpreted against the session's current stage, runs
// at most one aggregation query, and advances the stage forward.
package tutorial

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gridlens/outage-insight/internal/domain"
	"github.com/gridlens/outage-insight/internal/observability"
	"github.com/gridlens/outage-insight/internal/session"
)

var (
	zipPattern     = regexp.MustCompile(`(?i)add\s+(\d{5})\b`)
	comparePattern = regexp.MustCompile(`(?i)compare`)
)

// Reader is the slice of the outage store the engine queries.
type Reader interface {
	ComparisonByMonth(ctx context.Context, zips []string) (*domain.ChartMetrics, error)
	Correlations(ctx context.Context, zips []string) (*domain.ChartMetrics, error)
	WeatherImpact(ctx context.Context, zips []string) (*domain.ChartMetrics, error)
	TopAffected(ctx context.Context, zips []string) (*domain.ChartMetrics, error)
}

// Narrator produces the final reply text for a stage result.
type Narrator interface {
	Narrate(ctx context.Context, stage domain.Stage, result domain.StageResult) (string, error)
}

// Engine coordinates sessions, stage handlers, and narration for the
// chat endpoint.
type Engine struct {
	sessions session.Store
	data     Reader
	narrator Narrator
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates an Engine.
func New(sessions session.Store, data Reader, narrator Narrator, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		sessions: sessions,
		data:     data,
		narrator: narrator,
		logger:   logger,
		metrics:  metrics,
	}
}

// HandleMessage processes one chat turn for the session identified by
// key. The returned response carries the reply plus, for data-bearing
// stages, the visualization tag and chart metrics. Narration failures
// surface as domain.ErrNarration; query failures degrade to canned
// text without failing the turn.
func (e *Engine) HandleMessage(ctx context.Context, key, message string) (*domain.ChatResponse, error) {
	sess, created, err := e.sessions.GetOrCreate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if created {
		e.metrics.SessionsCreated.Inc()
		if err := e.sessions.Append(ctx, key, domain.Message{Role: domain.RoleSystem, Content: seedSystemPrompt}); err != nil {
			return nil, fmt.Errorf("failed to seed session history: %w", err)
		}
	}

	e.metrics.ChatTurns.WithLabelValues(string(domain.NormalizeStage(sess.Stage))).Inc()

	if err := e.sessions.Append(ctx, key, domain.Message{Role: domain.RoleUser, Content: message}); err != nil {
		return nil, fmt.Errorf("failed to record user message: %w", err)
	}

	next, result := e.dispatch(ctx, sess, message)
	sess.Stage = next
	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	reply, err := e.narrator.Narrate(ctx, next, result)
	if err != nil {
		return nil, err
	}

	if err := e.sessions.Append(ctx, key, domain.Message{Role: domain.RoleAssistant, Content: reply}); err != nil {
		return nil, fmt.Errorf("failed to record assistant message: %w", err)
	}

	resp := &domain.ChatResponse{Reply: reply, Zips: sess.Zips}
	if result.HasMetrics() {
		v := result.Visualization
		resp.Visualization = &v
		resp.Metrics = result.Metrics
	}
	return resp, nil
}

// dispatch interprets message under the session's current stage and
// returns the stage to move to plus the turn's result. It mutates
// sess.Zips for ZIP additions but never sess.Stage.
func (e *Engine) dispatch(ctx context.Context, sess *domain.Session, message string) (domain.Stage, domain.StageResult) {
	// Sessions restored from an older deployment may carry stage names
	// that no longer exist. The recovery turn resets to intro and
	// replays the intro text; the following turn advances as usual.
	if !sess.Stage.Valid() {
		return domain.StageIntro, domain.StageResult{Seed: introMessage()}
	}

	switch sess.Stage {
	case domain.StageIntro:
		return domain.StageCollectingZips, domain.StageResult{Seed: introMessage()}

	case domain.StageCollectingZips:
		if m := zipPattern.FindStringSubmatch(message); m != nil {
			sess.AddZip(m[1])
			return domain.StageCollectingZips, domain.StageResult{Seed: collectingMessage(sess.Zips)}
		}
		if comparePattern.MatchString(message) {
			result := e.runQuery(ctx, "comparison", e.data.ComparisonByMonth, sess.Zips,
				domain.VizOutageTimeseries, comparisonSeed, comparisonEmpty, comparisonFail)
			return domain.StageCorrelations, result
		}
		return domain.StageCollectingZips, domain.StageResult{Seed: collectingMessage(sess.Zips)}

	case domain.StageCorrelations:
		result := e.runQuery(ctx, "correlations", e.data.Correlations, sess.Zips,
			domain.VizCorrelations, correlationsSeed, correlationsEmpty, correlationsFail)
		return domain.StageWeather, result

	case domain.StageWeather:
		result := e.runQuery(ctx, "weather", e.data.WeatherImpact, sess.Zips,
			domain.VizWeatherImpact, weatherSeed, weatherEmpty, weatherFail)
		return domain.StageTopAreas, result

	case domain.StageTopAreas:
		result := e.runQuery(ctx, "top_areas", e.data.TopAffected, sess.Zips,
			domain.VizTopAffected, topAffectedSeed, topAffectedEmpty, topAffectedFail)
		return domain.StageEnd, result

	default: // StageEnd
		return domain.StageEnd, domain.StageResult{Seed: closingMessage()}
	}
}

type queryFunc func(ctx context.Context, zips []string) (*domain.ChartMetrics, error)

// runQuery executes one aggregation and maps the three possible
// outcomes (data, no rows, error) onto a StageResult. Errors are
// absorbed here: the tutorial keeps moving on a degraded reply.
func (e *Engine) runQuery(ctx context.Context, name string, fn queryFunc, zips []string, viz domain.Visualization, seed, emptySeed, failSeed string) domain.StageResult {
	start := time.Now()
	metrics, err := fn(ctx, zips)
	e.metrics.StageQueryTime.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		e.metrics.StageQueryErrs.Inc()
		e.logger.Error("stage query failed",
			slog.String("query", name),
			slog.Any("zips", zips),
			slog.Any("error", err),
		)
		return domain.StageResult{Seed: failSeed}
	}
	if metrics == nil {
		return domain.StageResult{Seed: emptySeed}
	}
	return domain.StageResult{Seed: seed, Visualization: viz, Metrics: metrics}
}
