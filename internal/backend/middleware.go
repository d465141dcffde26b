package backend

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/instrumentation"
	"github.com/teemow/mailbuddy/internal/logging"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestID echoes the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(api.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(api.HeaderRequestID, id)
		}
		w.Header().Set(api.HeaderRequestID, id)
		next.ServeHTTP(w, r)
	})
}

// instrument traces, times and logs every routed request. Metrics are
// labelled with the route template so ids never end up in label values.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		ctx, span := instrumentation.StartServerSpan(r.Context(), r.Method, route)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := time.Since(start)

		h.metrics.RecordHTTPRequest(ctx, r.Method, route, rec.status, elapsed)

		logger := h.logger.With(
			"method", r.Method,
			"route", route,
			"code", rec.status,
			"request_id", r.Header.Get(api.HeaderRequestID),
			logging.Duration(elapsed),
		)
		if traceID := instrumentation.TraceID(ctx); traceID != "" {
			logger = logger.With("trace_id", traceID)
		}
		if rec.status >= http.StatusInternalServerError {
			instrumentation.SetSpanError(span, fmt.Errorf("http status %d", rec.status))
			logger.Warn("request failed")
			return
		}
		instrumentation.SetSpanSuccess(span)
		logger.Debug("request served")
	})
}
