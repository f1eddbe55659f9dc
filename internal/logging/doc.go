// Package logging provides structured, context-aware logging on top of Zap.
//
// The Logger adds:
//   - a Trace level (-2, below Debug)
//   - trace_id/span_id and request correlation pulled from the context
//   - redaction of secret-looking fields and values
//   - level-aware sampling (errors are never sampled)
//   - an optional OpenTelemetry log bridge
//
// Logs are written to stderr by default so command output on stdout stays
// machine readable.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithOperation(ctx, "query")
//	logger.Info(ctx, "query completed", zap.Int("hits", n))
//
// Tests use NewTestLogger to assert on emitted entries.
package logging
