// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizflow_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	generationJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizflow_generation_jobs_total",
			Help: "Quiz generation jobs by outcome",
		},
		[]string{"outcome"}, // ready, failed, dropped
	)

	generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quizflow_generation_duration_seconds",
			Help:    "Time spent generating a quiz",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480},
		},
	)

	generationInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quizflow_generation_in_flight",
			Help: "Generation jobs currently running",
		},
	)

	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizflow_submissions_total",
			Help: "Answer submissions by outcome",
		},
		[]string{"outcome"}, // graded, conflict, not_ready, error
	)

	quizScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quizflow_quiz_score_percent",
			Help:    "Distribution of graded quiz percentages",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	llmRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizflow_llm_requests_total",
			Help: "LLM requests by purpose and result",
		},
		[]string{"model", "purpose", "result"},
	)

	llmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizflow_llm_request_duration_seconds",
			Help:    "LLM request latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "purpose"},
	)

	llmTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizflow_llm_tokens_total",
			Help: "LLM tokens consumed",
		},
		[]string{"model", "direction"}, // input, output
	)

	sessionsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quizflow_sessions",
			Help: "Stored sessions by status",
		},
		[]string{"status"},
	)
)

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// GenerationStarted marks a generation job as running and returns a func
// that records its outcome.
func GenerationStarted() func(outcome string) {
	start := time.Now()
	generationInFlight.Inc()
	return func(outcome string) {
		generationInFlight.Dec()
		generationJobs.WithLabelValues(outcome).Inc()
		generationDuration.Observe(time.Since(start).Seconds())
	}
}

// GenerationDropped counts a job that was never started.
func GenerationDropped() {
	generationJobs.WithLabelValues("dropped").Inc()
}

// Submission counts a submission outcome.
func Submission(outcome string) {
	submissions.WithLabelValues(outcome).Inc()
}

// QuizScore records a graded percentage.
func QuizScore(percent float64) {
	quizScores.Observe(percent)
}

// LLMRequest records one provider call.
func LLMRequest(model, purpose string, d time.Duration, inputTokens, outputTokens int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	llmRequests.WithLabelValues(model, purpose, result).Inc()
	llmDuration.WithLabelValues(model, purpose).Observe(d.Seconds())
	if inputTokens > 0 {
		llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// SetSessionCounts replaces the per-status session gauge values.
func SetSessionCounts(counts map[string]int, statuses []string) {
	for _, s := range statuses {
		sessionsByStatus.WithLabelValues(s).Set(float64(counts[s]))
	}
}
