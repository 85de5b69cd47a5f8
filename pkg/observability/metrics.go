package observability

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of RPC requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "familia_rpc_requests_total",
			Help: "Total number of RPC requests",
		},
		[]string{"procedure", "code"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "familia_rpc_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"procedure"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "familia_rpc_active_requests",
			Help: "Number of active RPC requests",
		},
		[]string{"procedure"},
	)
)

var (
	// StatementsProcessed counts extractions by the strategy that produced the result
	StatementsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "familia_statements_processed_total",
			Help: "Statements run through the extractor, by winning strategy",
		},
		[]string{"strategy"},
	)

	// TransactionsExtracted counts transactions accepted by the extractor
	TransactionsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "familia_statement_transactions_extracted_total",
			Help: "Transactions accepted by the extractor",
		},
	)

	// CandidatesRejected counts dropped candidates by reason
	CandidatesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "familia_statement_candidates_rejected_total",
			Help: "Extraction candidates dropped, by reason",
		},
		[]string{"reason"},
	)

	// ExtractionDuration tracks time spent extracting one statement
	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "familia_statement_extraction_duration_seconds",
			Help:    "Time spent extracting transactions from one statement",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// RecordExtraction records the outcome of one statement extraction.
func RecordExtraction(strategy string, transactions int, rejected map[string]int, duration time.Duration) {
	if strategy == "" {
		strategy = "none"
	}
	StatementsProcessed.WithLabelValues(strategy).Inc()
	TransactionsExtracted.Add(float64(transactions))
	for reason, n := range rejected {
		CandidatesRejected.WithLabelValues(reason).Add(float64(n))
	}
	ExtractionDuration.Observe(duration.Seconds())
}

// NewMetricsInterceptor creates an interceptor that collects Prometheus metrics
func NewMetricsInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure

			ActiveRequests.WithLabelValues(procedure).Inc()
			defer ActiveRequests.WithLabelValues(procedure).Dec()

			start := time.Now()
			defer func() {
				RequestDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			}()

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			RequestsTotal.WithLabelValues(procedure, code).Inc()

			return resp, err
		}
	}
}
