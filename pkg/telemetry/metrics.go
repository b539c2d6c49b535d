package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome values of the bootstrap metrics.
const (
	OutcomeReal    = "real"
	OutcomeNoop    = "noop"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	metricsOnce        sync.Once
	metricsInitErr     error
	discoveredCounter  metric.Int64Counter
	pipelineCounter    metric.Int64Counter
	certificateCounter metric.Int64Counter
)

// RecordDiscovered counts the bindings selected for backend.
func RecordDiscovered(ctx context.Context, backend string, count int) {
	if err := ensureMetrics(); err != nil {
		return
	}
	discoveredCounter.Add(ctx, int64(count), metric.WithAttributes(attribute.String("backend", backend)))
}

// RecordPipeline counts one assembled pipeline. outcome is OutcomeReal or
// OutcomeNoop.
func RecordPipeline(ctx context.Context, backend, signal, outcome string) {
	if err := ensureMetrics(); err != nil {
		return
	}
	pipelineCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("signal", signal),
		attribute.String("outcome", outcome),
	))
}

// RecordCertificateDownload counts one certificate download attempt.
func RecordCertificateDownload(ctx context.Context, backend, outcome string) {
	if err := ensureMetrics(); err != nil {
		return
	}
	certificateCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	))
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("polis.bindings")

		discoveredCounter, metricsInitErr = meter.Int64Counter(
			"bindings.discovered_total",
			metric.WithDescription("Service bindings selected per backend"),
			metric.WithUnit("{binding}"),
		)
		if metricsInitErr != nil {
			return
		}

		pipelineCounter, metricsInitErr = meter.Int64Counter(
			"bindings.pipelines_total",
			metric.WithDescription("Export pipelines assembled partitioned by outcome"),
			metric.WithUnit("{pipeline}"),
		)
		if metricsInitErr != nil {
			return
		}

		certificateCounter, metricsInitErr = meter.Int64Counter(
			"bindings.certificate_downloads_total",
			metric.WithDescription("Server certificate downloads partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
	})

	return metricsInitErr
}

type pipelineEvent struct {
	backend, signal string
	real            bool
}

type downloadEvent struct {
	backend string
	ok      bool
}

// bootstrapEvents buffers assembly outcomes until the meter provider they are
// recorded on exists.
type bootstrapEvents struct {
	mu         sync.Mutex
	discovered map[string]int
	order      []string
	pipelines  []pipelineEvent
	downloads  []downloadEvent
}

func (b *bootstrapEvents) Discovered(backend string, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.discovered == nil {
		b.discovered = map[string]int{}
	}
	if _, seen := b.discovered[backend]; !seen {
		b.order = append(b.order, backend)
	}
	b.discovered[backend] += count
}

func (b *bootstrapEvents) PipelineBuilt(backend, signal string, real bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipelines = append(b.pipelines, pipelineEvent{backend: backend, signal: signal, real: real})
}

func (b *bootstrapEvents) CertificateDownloaded(backend string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloads = append(b.downloads, downloadEvent{backend: backend, ok: ok})
}

func (b *bootstrapEvents) replay(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, backend := range b.order {
		RecordDiscovered(ctx, backend, b.discovered[backend])
	}
	for _, e := range b.pipelines {
		outcome := OutcomeNoop
		if e.real {
			outcome = OutcomeReal
		}
		RecordPipeline(ctx, e.backend, e.signal, outcome)
	}
	for _, e := range b.downloads {
		outcome := OutcomeFailure
		if e.ok {
			outcome = OutcomeSuccess
		}
		RecordCertificateDownload(ctx, e.backend, outcome)
	}
}
