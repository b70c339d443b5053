package engine

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"fh-draw-bot/internal/analysis"
	"fh-draw-bot/internal/config"
	"fh-draw-bot/internal/metrics"
	"fh-draw-bot/internal/odds"
	"fh-draw-bot/internal/provider"
)

// OddsSource supplies the match list and per-match first-half odds.
// A nil odds result means no data for that match; sources never error.
type OddsSource interface {
	ListMatches(ctx context.Context) []provider.Match
	FetchFirstHalfOdds(ctx context.Context, matchID string) *odds.Odds
}

// Notifier receives candidates as they are found. May be nil.
type Notifier interface {
	AlertCandidate(c Candidate)
	LogScan(matchesScanned, candidatesFound int)
	CleanupOldAlerts()
}

// Candidate is one match whose first-half draw clears the EV threshold.
type Candidate struct {
	Match        provider.Match
	DrawOdds     float64
	EVPercent    float64
	ModelProb    float64
	FairDrawProb float64
}

// Engine drives the ranking passes: list matches, evaluate each one
// sequentially, keep what clears the threshold.
type Engine struct {
	source   OddsSource
	notifier Notifier
	log      *zap.Logger
	interval time.Duration

	cleanupInterval time.Duration
}

// New creates an Engine. notifier may be nil.
func New(source OddsSource, notifier Notifier, log *zap.Logger, interval time.Duration) *Engine {
	return &Engine{
		source:          source,
		notifier:        notifier,
		log:             log,
		interval:        interval,
		cleanupInterval: config.DefaultCleanupInterval,
	}
}

// Run executes ranking passes on the configured interval until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(e.cleanupInterval)
	defer cleanupTicker.Stop()

	e.log.Info("starting scan loop", zap.Duration("interval", e.interval))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("scan loop stopped")
			return
		case <-cleanupTicker.C:
			if e.notifier != nil {
				e.notifier.CleanupOldAlerts()
			}
		case <-ticker.C:
			candidates := e.RankedPositiveEV(ctx)
			if e.notifier != nil {
				for _, c := range candidates {
					e.notifier.AlertCandidate(c)
				}
			}
		}
	}
}

// RankedPositiveEV lists matches and evaluates each one in turn: fetch
// first-half odds (skip when absent), map odds to expected goals, scale
// to the first half, run the Poisson draw model, and compute EV. Matches
// clearing the threshold are returned sorted by descending EV percent.
//
// Matches are processed one at a time; the provider is rate limited and
// the retry model stays simple. Cancelling ctx ends the pass early with
// whatever was collected.
func (e *Engine) RankedPositiveEV(ctx context.Context) []Candidate {
	matches := e.source.ListMatches(ctx)

	var candidates []Candidate
	scanned := 0
	for _, match := range matches {
		if ctx.Err() != nil {
			break
		}
		scanned++
		metrics.MatchesScanned.Inc()

		o := e.source.FetchFirstHalfOdds(ctx, match.ID)
		if o == nil {
			continue
		}

		homeXg, awayXg := analysis.ImpliedExpectedGoals(*o)
		modelProb := analysis.DrawProbability(
			homeXg*analysis.FirstHalfFactor,
			awayXg*analysis.FirstHalfFactor,
			analysis.DefaultMaxGoals,
		)
		ev := analysis.Evaluate(*o, modelProb)

		if !ev.Actionable() {
			continue
		}

		candidates = append(candidates, Candidate{
			Match:        match,
			DrawOdds:     ev.DrawOdds,
			EVPercent:    ev.EVPercent,
			ModelProb:    ev.ModelDrawProb,
			FairDrawProb: ev.FairDrawProb,
		})
		metrics.CandidatesFound.Inc()
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].EVPercent > candidates[j].EVPercent
	})

	metrics.ScansTotal.Inc()
	if e.notifier != nil {
		e.notifier.LogScan(scanned, len(candidates))
	} else {
		e.log.Info("scan complete",
			zap.Int("matches", scanned),
			zap.Int("candidates", len(candidates)))
	}

	return candidates
}
