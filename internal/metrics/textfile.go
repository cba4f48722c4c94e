// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Textfile mirrors the latest value of every scalar into a Prometheus
// textfile, for collection by node_exporter's textfile collector.
type Textfile struct {
	path     string
	registry *prometheus.Registry
	scalars  *prometheus.GaugeVec
	epoch    prometheus.Gauge

	mu sync.Mutex
}

// NewTextfile returns a Textfile writing to path, labelling every series
// with run.
func NewTextfile(path, run string) *Textfile {
	t := &Textfile{
		path:     path,
		registry: prometheus.NewRegistry(),
		scalars: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "meshtrain_scalar",
				Help:        "Latest value of a training scalar by tag",
				ConstLabels: prometheus.Labels{"run": run},
			},
			[]string{"tag"},
		),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "meshtrain_epoch",
			Help:        "Most recent epoch that reported a scalar",
			ConstLabels: prometheus.Labels{"run": run},
		}),
	}
	t.registry.MustRegister(t.scalars, t.epoch)
	return t
}

func (t *Textfile) AddScalar(_ context.Context, tag string, step int, value float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.scalars.WithLabelValues(tag).Set(value)
	t.epoch.Set(float64(step))
	if err := prometheus.WriteToTextfile(t.path, t.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
