package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ObserveRequests logs and counts every request served by a status endpoint.
// Scrapes of the metrics route log at trace so a prometheus poller does not
// drown out session events at debug.
func ObserveRequests(logger zerolog.Logger, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()
		elapsed := time.Since(began)

		route := routeOf(c)
		code := c.Writer.Status()
		RecordHTTPRequest(service, c.Request.Method, route, code, elapsed)

		requestEvent(logger, route, code).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", code).
			Dur("elapsed", elapsed).
			Str("remote", c.ClientIP()).
			Msg("status request")
	}
}

// routeOf prefers the registered pattern so unknown paths do not explode
// metric cardinality.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func requestEvent(logger zerolog.Logger, route string, code int) *zerolog.Event {
	switch {
	case code >= 500:
		return logger.Error()
	case code >= 400 && code != 503:
		return logger.Warn()
	case route == "/metrics":
		return logger.Trace()
	default:
		return logger.Debug()
	}
}
