// internal/api/middleware.go
package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	commonhttp "capacity-engine/internal/common/http"
	"capacity-engine/internal/common/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags the request with a correlation id (reusing the caller's
// X-Request-ID when present), echoes it back and counts the response.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()

		id := r.Header.Get(commonhttp.RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(commonhttp.RequestIDHeader, id)
		ctx := commonhttp.WithRequestID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug("request served", map[string]interface{}{
			"route":     route,
			"status":    rec.status,
			"requestId": id,
			"latencyMs": s.clock.Now().Sub(start).Milliseconds(),
		})
	})
}
