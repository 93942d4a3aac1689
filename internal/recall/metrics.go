package recall

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const meterName = "github.com/thebtf/chatlens/internal/recall"

// Instrument names.
const (
	MetricCacheLookups = "chatlens.recall.cache.lookups"
	MetricRebuilds     = "chatlens.recall.index.rebuilds"
	MetricQueryLatency = "chatlens.recall.query.duration"
)

// Metrics records cache behaviour and query latency on an OpenTelemetry SDK
// meter provider with a manual reader, so the process can report its own
// counters through Snapshot.
type Metrics struct {
	provider     *sdkmetric.MeterProvider
	reader       *sdkmetric.ManualReader
	cacheLookups metric.Int64Counter
	rebuilds     metric.Int64Counter
	latency      metric.Float64Histogram
}

// TierCounts is the hit/miss tally of one cache tier.
type TierCounts struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Snapshot is the cumulative state of the recall instruments.
type Snapshot struct {
	Memory       TierCounts `json:"memory"`
	File         TierCounts `json:"file"`
	Rebuilds     int64      `json:"rebuilds"`
	Queries      uint64     `json:"queries"`
	QuerySeconds float64    `json:"query_seconds"`
}

// NewMetrics creates a meter provider owned by the returned Metrics and
// registers the recall instruments on it.
func NewMetrics() (*Metrics, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter(meterName)

	lookups, err := meter.Int64Counter(MetricCacheLookups,
		metric.WithDescription("Recall index lookups by cache tier and outcome"))
	if err != nil {
		return nil, err
	}
	rebuilds, err := meter.Int64Counter(MetricRebuilds,
		metric.WithDescription("Recall index rebuilds"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(MetricQueryLatency,
		metric.WithDescription("Recall query latency"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		provider:     provider,
		reader:       reader,
		cacheLookups: lookups,
		rebuilds:     rebuilds,
		latency:      latency,
	}, nil
}

// Snapshot collects the current cumulative values. A nil Metrics reports zeros.
func (m *Metrics) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if m == nil {
		return snap, nil
	}
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return snap, fmt.Errorf("collect recall metrics: %w", err)
	}

	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					switch md.Name {
					case MetricRebuilds:
						snap.Rebuilds += dp.Value
					case MetricCacheLookups:
						snap.addLookup(dp.Attributes, dp.Value)
					}
				}
			case metricdata.Histogram[float64]:
				if md.Name != MetricQueryLatency {
					continue
				}
				for _, dp := range data.DataPoints {
					snap.Queries += dp.Count
					snap.QuerySeconds += dp.Sum
				}
			}
		}
	}
	return snap, nil
}

func (s *Snapshot) addLookup(attrs attribute.Set, n int64) {
	tier, _ := attrs.Value("tier")
	hit, _ := attrs.Value("hit")
	var counts *TierCounts
	switch tier.AsString() {
	case "memory":
		counts = &s.Memory
	case "file":
		counts = &s.File
	default:
		return
	}
	if hit.AsBool() {
		counts.Hits += n
	} else {
		counts.Misses += n
	}
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

func (m *Metrics) lookup(ctx context.Context, tier string, hit bool) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.Bool("hit", hit),
	))
}

func (m *Metrics) rebuild(ctx context.Context) {
	if m == nil {
		return
	}
	m.rebuilds.Add(ctx, 1)
}

func (m *Metrics) query(ctx context.Context, d time.Duration, status Status) {
	if m == nil {
		return
	}
	m.latency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", string(status))))
}
