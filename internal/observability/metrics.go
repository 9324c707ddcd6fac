package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	completionCounter      *prometheus.CounterVec
	amountMismatchCounter  prometheus.Counter
	webhookEventCounter    *prometheus.CounterVec
	ledgerImbalanceCounter prometheus.Counter
	idempotencyCounter     *prometheus.CounterVec
	stalePendingCounter    prometheus.Counter
	workerRunCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		completionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_completion_total",
			Help: "Completion reconciler outcomes per invocation source",
		}, []string{"source", "outcome"})

		amountMismatchCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_amount_mismatch_total",
			Help: "Captured amounts that diverged from the ledger-recorded amount",
		})

		webhookEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_webhook_events_total",
			Help: "Gateway webhook deliveries by result",
		}, []string{"result"})

		ledgerImbalanceCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_ledger_imbalance_total",
			Help: "Wallets whose balance diverged from their SUCCESS transaction sum",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		stalePendingCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_stale_pending_expired_total",
			Help: "PENDING transactions expired by the sweep worker",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			completionCounter,
			amountMismatchCounter,
			webhookEventCounter,
			ledgerImbalanceCounter,
			idempotencyCounter,
			stalePendingCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// IncrementCompletion records a reconciler outcome. Source is "client" or
// "webhook" or "sweeper"; outcome is "success", "failed" or "noop".
func IncrementCompletion(source, outcome string) {
	if completionCounter == nil {
		return
	}
	completionCounter.WithLabelValues(source, outcome).Inc()
}

func IncrementAmountMismatch() {
	if amountMismatchCounter == nil {
		return
	}
	amountMismatchCounter.Inc()
}

func IncrementWebhookEvent(result string) {
	if webhookEventCounter == nil {
		return
	}
	webhookEventCounter.WithLabelValues(result).Inc()
}

func IncrementLedgerImbalance() {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func AddStalePendingExpired(count int) {
	if stalePendingCounter == nil {
		return
	}
	stalePendingCounter.Add(float64(count))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
