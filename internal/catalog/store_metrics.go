package catalog

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opLoad    = "load"
	opReplace = "replace"

	resultOK        = "ok"
	resultNotFound  = "not_found"
	resultMalformed = "malformed"
	resultError     = "error"
)

type StoreMetrics struct {
	Ops  *prometheus.CounterVec
	Size prometheus.Gauge
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "product_store_operations_total",
				Help: "Product store operations by result",
			},
			[]string{"op", "result"},
		),
		Size: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "product_store_collection_size",
				Help: "Products in the collection as last loaded or written",
			},
		),
	}

	reg.MustRegister(m.Ops, m.Size)
	return m
}

// Wrap returns a Store that records every operation on m.
func (m *StoreMetrics) Wrap(s Store) Store {
	return &instrumentedStore{next: s, m: m}
}

type instrumentedStore struct {
	next Store
	m    *StoreMetrics
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *instrumentedStore) Load(ctx context.Context) ([]Product, error) {
	products, err := s.next.Load(ctx)
	s.m.Ops.WithLabelValues(opLoad, resultOf(err)).Inc()
	if err == nil {
		s.m.Size.Set(float64(len(products)))
	}
	return products, err
}

func (s *instrumentedStore) Replace(ctx context.Context, products []Product) error {
	err := s.next.Replace(ctx, products)
	s.m.Ops.WithLabelValues(opReplace, resultOf(err)).Inc()
	if err == nil {
		s.m.Size.Set(float64(len(products)))
	}
	return err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrCollectionNotFound):
		return resultNotFound
	case errors.Is(err, ErrMalformedCollection):
		return resultMalformed
	default:
		return resultError
	}
}
