// Package metrics exposes segmentation and recognition counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voicekb/internal/logging"
)

// Metrics contains all Prometheus metrics for dictation. It implements
// segment.Observer.
type Metrics struct {
	registry *prometheus.Registry

	FramesAppended  prometheus.Counter
	SamplesAppended prometheus.Counter
	BufferedSamples prometheus.Gauge

	SegmentsEmitted prometheus.Counter
	SegmentLength   prometheus.Histogram
	SegmentsDropped *prometheus.CounterVec

	Recognitions        *prometheus.CounterVec
	RecognitionDuration prometheus.Histogram
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		FramesAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "voicekb_frames_appended_total",
			Help: "Total number of audio frames appended to the segmentation buffer",
		}),
		SamplesAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "voicekb_samples_appended_total",
			Help: "Total number of samples appended to the segmentation buffer",
		}),
		BufferedSamples: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicekb_buffered_samples",
			Help: "Samples currently waiting in the segmentation buffer",
		}),

		SegmentsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "voicekb_segments_emitted_total",
			Help: "Total number of segments handed to the recognizer",
		}),
		SegmentLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicekb_segment_samples",
			Help:    "Length of extracted segments in samples",
			Buckets: prometheus.ExponentialBuckets(4000, 2, 10), // 0.25s to ~2 minutes at 16kHz
		}),
		SegmentsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicekb_segments_dropped_total",
			Help: "Total number of segments discarded, by reason",
		}, []string{"reason"}),

		Recognitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicekb_recognitions_total",
			Help: "Total number of recognizer calls, by result",
		}, []string{"result"}),
		RecognitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicekb_recognition_duration_seconds",
			Help:    "Duration of recognizer calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// FrameAppended records one appended frame.
func (m *Metrics) FrameAppended(samples int) {
	m.FramesAppended.Inc()
	m.SamplesAppended.Add(float64(samples))
}

// Buffered sets the current buffer length.
func (m *Metrics) Buffered(samples int) {
	m.BufferedSamples.Set(float64(samples))
}

// SegmentEmitted records an extracted segment.
func (m *Metrics) SegmentEmitted(samples int) {
	m.SegmentsEmitted.Inc()
	m.SegmentLength.Observe(float64(samples))
}

// SegmentDropped records a discarded segment.
func (m *Metrics) SegmentDropped(reason string) {
	m.SegmentsDropped.WithLabelValues(reason).Inc()
}

// RecognitionDone records a recognizer call.
func (m *Metrics) RecognitionDone(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Recognitions.WithLabelValues(result).Inc()
	m.RecognitionDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.SugaredLogger) error {
	log = logging.OrNop(log).Named("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infow("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
