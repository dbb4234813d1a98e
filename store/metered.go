package store

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "ioxstore"
	metricsSubsystem = "object_store"

	opLabelKey     = "op"
	resultLabelKey = "result"
)

// StoreMetrics holds the collectors shared by every Metered store made from
// it. Register it once with a prometheus.Registerer.
type StoreMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
}

// NewStoreMetrics creates the collectors. They are not registered.
func NewStoreMetrics() *StoreMetrics {
	return &StoreMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "Number of object store operations by result",
		}, []string{opLabelKey, resultLabelKey}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Object store operations handling time",
		}, []string{opLabelKey}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "bytes_total",
			Help:      "Bytes written to and read from the object store",
		}, []string{opLabelKey}),
	}
}

// Register adds the collectors to r.
func (m *StoreMetrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.bytes} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *StoreMetrics) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsNotFound(err):
		result = "not_found"
	default:
		result = "error"
	}
	m.requests.With(prometheus.Labels{opLabelKey: op, resultLabelKey: result}).Inc()
	m.duration.With(prometheus.Labels{opLabelKey: op}).Observe(time.Since(start).Seconds())
}

// Metered wraps a Store and records every operation in a StoreMetrics.
type Metered struct {
	s Store
	m *StoreMetrics
}

var _ Store = Metered{}

// NewMetered returns s instrumented with m.
func NewMetered(s Store, m *StoreMetrics) Metered {
	return Metered{s: s, m: m}
}

func (ms Metered) NewPath() Path {
	return ms.s.NewPath()
}

func (ms Metered) Put(ctx context.Context, location Path, r io.Reader, length int64) error {
	start := time.Now()
	cr := &countingReader{r: r, expected: -1}
	err := ms.s.Put(ctx, location, cr, length)
	ms.m.observe("put", start, err)
	ms.m.bytes.With(prometheus.Labels{opLabelKey: "put"}).Add(float64(cr.n))
	return err
}

func (ms Metered) Get(ctx context.Context, location Path) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := ms.s.Get(ctx, location)
	ms.m.observe("get", start, err)
	if err != nil {
		return nil, err
	}
	return &meteredReader{ReadCloser: rc, c: ms.m.bytes.With(prometheus.Labels{opLabelKey: "get"})}, nil
}

func (ms Metered) List(ctx context.Context, prefix Path) (Lister, error) {
	start := time.Now()
	l, err := ms.s.List(ctx, prefix)
	ms.m.observe("list", start, err)
	if err != nil {
		return nil, err
	}
	return &meteredLister{l: l, m: ms.m}, nil
}

func (ms Metered) Delete(ctx context.Context, location Path) error {
	start := time.Now()
	err := ms.s.Delete(ctx, location)
	ms.m.observe("delete", start, err)
	return err
}

type meteredReader struct {
	io.ReadCloser
	c prometheus.Counter
}

func (r *meteredReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.c.Add(float64(n))
	return n, err
}

type meteredLister struct {
	l Lister
	m *StoreMetrics
}

func (ml *meteredLister) Next(ctx context.Context) ([]Path, error) {
	start := time.Now()
	batch, err := ml.l.Next(ctx)
	if err == io.EOF {
		return nil, err
	}
	ml.m.observe("list_page", start, err)
	return batch, err
}

func (ml *meteredLister) Close() error {
	return ml.l.Close()
}
