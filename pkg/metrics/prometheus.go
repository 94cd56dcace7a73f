package metrics

// Gin instrumentation derived from github.com/zsais/go-gin-prometheus,
// trimmed to the metrics this service actually scrapes.

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code, method and route.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url"},
}

const defaultMetricPath = "/metrics"

// Prometheus instruments a gin engine and exposes the scrape endpoint.
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
	bpDur  *prometheus.HistogramVec

	MetricsPath string
}

func NewPrometheus(subsystem string) *Prometheus {
	p := &Prometheus{MetricsPath: defaultMetricPath}
	for _, def := range []*Metric{reqCnt, reqDur, MetricsBusinessProcess} {
		collector := NewMetric(def, subsystem)
		prometheus.MustRegister(collector)
		def.MetricCollector = collector
	}
	p.reqCnt = reqCnt.MetricCollector.(*prometheus.CounterVec)
	p.reqDur = reqDur.MetricCollector.(*prometheus.HistogramVec)
	p.bpDur = MetricsBusinessProcess.MetricCollector.(*prometheus.HistogramVec)
	return p
}

// Use installs the middleware and the scrape route on the engine.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
	e.GET(p.MetricsPath, gin.WrapH(promhttp.Handler()))
}

// ServeOn exposes the scrape endpoint on its own listener instead of the
// instrumented engine.
func (p *Prometheus) ServeOn(addr string) {
	mux := http.NewServeMux()
	mux.Handle(p.MetricsPath, promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			panic(err)
		}
	}()
}

func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		// FullPath keeps route templates so path params don't explode
		// label cardinality.
		url := c.FullPath()
		if url == "" {
			url = "unmatched"
		}

		p.reqDur.WithLabelValues(status, c.Request.Method, url).Observe(MillisecondsSince(start))
		p.reqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
	}
}

// ObserveProcess records the latency of a named business step, e.g. one
// webhook event's reconciliation.
func (p *Prometheus) ObserveProcess(typ, subtype string, start time.Time) {
	p.bpDur.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

func MillisecondsSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}
