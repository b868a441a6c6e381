package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lewisedginton/sdr_chatbot/internal/bot"
	"github.com/lewisedginton/sdr_chatbot/internal/connectors/crm"
	"github.com/lewisedginton/sdr_chatbot/pkg/metrics"
)

// BotMetrics records every processed turn. It implements bot.Observer.
type BotMetrics struct {
	turns        *prometheus.CounterVec
	degraded     prometheus.Counter
	stageErrors  *prometheus.CounterVec
	turnDuration prometheus.Histogram
}

var _ bot.Observer = (*BotMetrics)(nil)

// NewBotMetrics registers the turn collectors on m.
func NewBotMetrics(m *metrics.Metrics) (*BotMetrics, error) {
	bm := &BotMetrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdrbot",
			Name:      "turns_total",
			Help:      "Processed messages by detected intent and reply source",
		}, []string{"intent", "source"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdrbot",
			Name:      "turns_degraded_total",
			Help:      "Replies produced by a fallback path",
		}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdrbot",
			Name:      "stage_errors_total",
			Help:      "Pipeline stage failures",
		}, []string{"stage"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sdrbot",
			Name:      "turn_duration_seconds",
			Help:      "Time to process one message",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	if err := m.Register(bm.turns, bm.degraded, bm.stageErrors, bm.turnDuration); err != nil {
		return nil, err
	}
	return bm, nil
}

func (bm *BotMetrics) ObserveTurn(o bot.Observation) {
	bm.turns.WithLabelValues(string(o.Intent), string(o.Source)).Inc()
	if o.Degraded {
		bm.degraded.Inc()
	}
	for _, stage := range o.FailedStages {
		bm.stageErrors.WithLabelValues(stage).Inc()
	}
	bm.turnDuration.Observe(o.Duration.Seconds())
}

// PollMetrics counts CRM polls and feeds the per-message job counters.
type PollMetrics struct {
	polls      *prometheus.CounterVec
	jobs       map[int]prometheus.Counter
	lastPolled prometheus.Gauge
}

// NewPollMetrics registers the poll collectors on m. m must have been
// created with job metrics enabled.
func NewPollMetrics(m *metrics.Metrics) (*PollMetrics, error) {
	pm := &PollMetrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdrbot",
			Name:      "crm_polls_total",
			Help:      "CRM polls by outcome",
		}, []string{"outcome"}),
		lastPolled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sdrbot",
			Name:      "crm_last_poll_fetched",
			Help:      "Messages fetched by the most recent successful poll",
		}),
		jobs: m.JobMetricCounters,
	}
	if err := m.Register(pm.polls, pm.lastPolled); err != nil {
		return nil, err
	}
	return pm, nil
}

// OnPoll has the signature of crm.Config.OnPoll.
func (pm *PollMetrics) OnPoll(res crm.PollResult, err error) {
	if err != nil {
		pm.polls.WithLabelValues("error").Inc()
		return
	}
	pm.polls.WithLabelValues("ok").Inc()
	pm.lastPolled.Set(float64(res.Fetched))
	if pm.jobs == nil {
		return
	}
	pm.jobs[metrics.JobMetricTotal].Add(float64(res.Replied + res.Failed))
	pm.jobs[metrics.JobMetricTotalSuccess].Add(float64(res.Replied))
	pm.jobs[metrics.JobMetricTotalFailed].Add(float64(res.Failed))
}
