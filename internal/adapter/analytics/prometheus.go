package analytics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

// PrometheusSink turns events into metrics.
type PrometheusSink struct {
	EventsTotal     *prometheus.CounterVec
	TurnsTotal      *prometheus.CounterVec
	TurnDuration    *prometheus.HistogramVec
	TokensTotal     *prometheus.CounterVec
	UnitsTotal      prometheus.Counter
	ModelAttempts   prometheus.Histogram
	SearchesTotal   prometheus.Counter
	CacheLookups    *prometheus.CounterVec
	BranchesCreated prometheus.Counter
}

// NewPrometheusSink registers the metrics with reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	return &PrometheusSink{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convo_events_total",
				Help: "Total number of analytics events by type",
			},
			[]string{"type"},
		),
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convo_turns_total",
				Help: "Total number of turns by outcome",
			},
			[]string{"status", "intent", "language"},
		),
		TurnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "convo_turn_duration_seconds",
				Help:    "Duration of turns in seconds",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"cached"},
		),
		TokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convo_model_tokens_total",
				Help: "Model tokens reported by the provider",
			},
			[]string{"kind"},
		),
		UnitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "convo_quota_units_deducted_total",
				Help: "Quota units deducted from users",
			},
		),
		ModelAttempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "convo_model_attempts",
				Help:    "Model calls needed per turn",
				Buckets: []float64{1, 2, 3, 5},
			},
		),
		SearchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "convo_search_augmentations_total",
				Help: "Turns augmented with a search fact",
			},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convo_cache_lookups_total",
				Help: "Semantic cache lookups by result",
			},
			[]string{"result"},
		),
		BranchesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "convo_branches_created_total",
				Help: "Branches created",
			},
		),
	}
}

func (p *PrometheusSink) Emit(ctx context.Context, ev Event) error {
	p.EventsTotal.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type == domain.EventTypeBranchCreated {
		p.BranchesCreated.Inc()
	}

	t := ev.Turn
	if t == nil {
		return nil
	}
	p.TurnsTotal.WithLabelValues(string(t.Status), orNone(t.Intent), orNone(t.Language)).Inc()
	p.TurnDuration.WithLabelValues(strconv.FormatBool(t.CacheHit)).Observe(t.Latency.Seconds())
	if t.CacheHit {
		p.CacheLookups.WithLabelValues("hit").Inc()
	} else if t.ModelAttempts > 0 {
		p.CacheLookups.WithLabelValues("miss").Inc()
	}
	if t.Usage.PromptTokens > 0 {
		p.TokensTotal.WithLabelValues("prompt").Add(float64(t.Usage.PromptTokens))
	}
	if t.Usage.CompletionTokens > 0 {
		p.TokensTotal.WithLabelValues("completion").Add(float64(t.Usage.CompletionTokens))
	}
	if t.Units > 0 {
		p.UnitsTotal.Add(float64(t.Units))
	}
	if t.ModelAttempts > 0 {
		p.ModelAttempts.Observe(float64(t.ModelAttempts))
	}
	if t.Searched {
		p.SearchesTotal.Inc()
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
