package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gkps"

// Recorder exposes aggregator and source loading statistics. It satisfies aggregator.Observer
// and setup.FetchObserver.
type Recorder struct {
	merges        *prometheus.CounterVec
	keys          *prometheus.GaugeVec
	decodeErrors  *prometheus.CounterVec
	notifications *prometheus.CounterVec
	changedKeys   *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Merge cycles completed",
		}, []string{"aggregator"}),
		keys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keys",
			Help:      "Keys in the merged view",
		}, []string{"aggregator"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Sources that were treated as empty during a merge",
		}, []string{"aggregator", "source"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_notifications_total",
			Help:      "Change notifications delivered to subscribers",
		}, []string{"aggregator"}),
		changedKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changed_keys_total",
			Help:      "Keys reported as changed to subscribers",
		}, []string{"aggregator"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Declared sources that could not be loaded",
		}, []string{"source", "reason"}),
	}

	reg.MustRegister(r.merges, r.keys, r.decodeErrors, r.notifications, r.changedKeys, r.fetchErrors)
	return r
}

func (r *Recorder) MergeCompleted(aggregator string, keys int) {
	r.merges.WithLabelValues(aggregator).Inc()
	r.keys.WithLabelValues(aggregator).Set(float64(keys))
}

func (r *Recorder) DecodeFailed(aggregator string, source string) {
	r.decodeErrors.WithLabelValues(aggregator, source).Inc()
}

func (r *Recorder) ChangesNotified(aggregator string, keys int) {
	r.notifications.WithLabelValues(aggregator).Inc()
	r.changedKeys.WithLabelValues(aggregator).Add(float64(keys))
}

func (r *Recorder) FetchFailed(source string, reason string) {
	r.fetchErrors.WithLabelValues(source, reason).Inc()
}
