// Package instrumentation provides OpenTelemetry metrics and tracing for mailbuddy.
//
// # Metrics
//
// Backend:
//   - http_requests_total, http_request_duration_seconds: by method, path and status
//   - gmail_api_operations_total, gmail_api_operation_duration_seconds: by operation and status
//
// Client:
//   - api_requests_total, api_request_duration_seconds: calls to the backend by operation and status
//   - oauth_sign_in_total, oauth_token_refresh_total: by result
//   - classifications_total: enrichment attempts by outcome (and category with detailed labels)
//   - enrichment_queue_depth: messages waiting for classification
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: mailbuddy)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordAPIRequest(ctx, "classify", instrumentation.StatusSuccess, time.Since(start))
package instrumentation
