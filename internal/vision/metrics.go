package vision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var imageAnalysisTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "image_analysis_total",
		Help: "Total number of image analyses by outcome",
	},
	[]string{"outcome", "report_type"},
)

func recordAnalysis(a Analysis) {
	imageAnalysisTotal.WithLabelValues(string(a.Outcome), a.ReportType).Inc()
}
