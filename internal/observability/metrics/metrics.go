package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	numbersAllocated  metric.Int64Counter
	statusTransitions metric.Int64Counter
	auditWrites       metric.Int64Counter
	auditWriteFailed  metric.Int64Counter
	docNumbersIssued  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "logiport"
	}
	meter := provider.Meter(name)

	numbersAllocated, err := meter.Int64Counter("logiport_numbers_allocated_total")
	if err != nil {
		return nil, err
	}
	statusTransitions, err := meter.Int64Counter("logiport_status_transitions_total")
	if err != nil {
		return nil, err
	}
	auditWrites, err := meter.Int64Counter("logiport_audit_writes_total")
	if err != nil {
		return nil, err
	}
	auditWriteFailed, err := meter.Int64Counter("logiport_audit_write_failures_total")
	if err != nil {
		return nil, err
	}
	docNumbersIssued, err := meter.Int64Counter("logiport_doc_numbers_issued_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		numbersAllocated:  numbersAllocated,
		statusTransitions: statusTransitions,
		auditWrites:       auditWrites,
		auditWriteFailed:  auditWriteFailed,
		docNumbersIssued:  docNumbersIssued,
	}, nil
}

// RecordNumberAllocated increments the allocated sequence number count.
func (m *Metrics) RecordNumberAllocated(ctx context.Context, counterKey string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("counter_key", strings.TrimSpace(counterKey)))
	m.numbersAllocated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStatusTransition increments lifecycle transition counts.
func (m *Metrics) RecordStatusTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.statusTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuditWrite increments successful audit record counts.
func (m *Metrics) RecordAuditWrite(ctx context.Context, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action", strings.TrimSpace(action)))
	m.auditWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuditWriteFailure increments dropped audit record counts.
func (m *Metrics) RecordAuditWriteFailure(ctx context.Context, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action", strings.TrimSpace(action)))
	m.auditWriteFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDocNumberIssued increments issued document number counts.
func (m *Metrics) RecordDocNumberIssued(ctx context.Context, docCode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("doc_code", strings.TrimSpace(docCode)))
	m.docNumbersIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"counter_key": {},
	"from_status": {},
	"to_status":   {},
	"action":      {},
	"doc_code":    {},
	"endpoint":    {},
	"status_code": {},
	"method":      {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
