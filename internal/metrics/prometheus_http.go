package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler serves the metrics of reg in the Prometheus text and
// OpenMetrics formats. A nil registry falls back to the process default.
func HTTPHandler(reg *prom.Registry) http.Handler {
	var gatherer prom.Gatherer = prom.DefaultGatherer
	if reg != nil {
		gatherer = reg
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
