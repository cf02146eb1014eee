package middleware

import (
	"net/http"
	"time"

	"github.com/HammerMeetNail/friendhub/internal/logging"
)

// RequestLogger logs HTTP requests with timing information.
type RequestLogger struct {
	logger    *logging.Logger
	clientIPs *ClientIPResolver
}

// NewRequestLogger logs through logger. A nil clientIPs logs the peer address.
func NewRequestLogger(logger *logging.Logger, clientIPs *ClientIPResolver) *RequestLogger {
	if logger == nil {
		logger = logging.Default
	}
	return &RequestLogger{logger: logger, clientIPs: clientIPs}
}

func (l *RequestLogger) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.statusCode,
			"size":        recorder.size,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": l.clientIPs.ClientIP(r),
			"user_agent":  r.UserAgent(),
		}
		// Query strings can carry coordinates; keep only the key names.
		if r.URL.RawQuery != "" {
			keys := make([]string, 0, len(r.URL.Query()))
			for k := range r.URL.Query() {
				keys = append(keys, k)
			}
			fields["query_keys"] = keys
		}

		switch {
		case recorder.statusCode >= 500:
			l.logger.Error("HTTP request", fields)
		case recorder.statusCode >= 400:
			l.logger.Warn("HTTP request", fields)
		default:
			l.logger.Info("HTTP request", fields)
		}
	})
}
