// Package telemetry wires OpenTelemetry tracing and metrics for ragstore.
//
// Spans and metrics are exported over OTLP (gRPC or HTTP/protobuf) when
// enabled in config:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sample_rate: 1.0
//	  export_interval: 15s
//
// Typical use:
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Exporter failures do not fail startup. The failed provider is left as
// the global no-op one and the failure is reported by Err.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
