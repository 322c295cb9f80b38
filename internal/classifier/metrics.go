package classifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classificationTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "classification_total",
		Help: "Total number of incident classifications",
	},
	[]string{"outcome", "department"},
)

func recordClassification(res Result) {
	classificationTotal.WithLabelValues(string(res.Outcome), string(res.Department)).Inc()
}
