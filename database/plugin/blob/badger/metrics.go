// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const blobMetricNamePrefix = "database_blob_"

type blobMetrics struct {
	ops        *prometheus.CounterVec
	bytesTotal prometheus.Counter
}

// The nil receiver checks let the store run without a registry
func (m *blobMetrics) observeGet() {
	if m == nil {
		return
	}
	m.ops.WithLabelValues("get").Inc()
}

func (m *blobMetrics) observeSet(size int) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues("set").Inc()
	m.bytesTotal.Add(float64(size))
}

func (m *blobMetrics) observeDelete() {
	if m == nil {
		return
	}
	m.ops.WithLabelValues("delete").Inc()
}

func (d *BlobStoreBadger) registerBlobMetrics() error {
	factory := promauto.With(d.promRegistry)
	d.metrics = &blobMetrics{
		ops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: blobMetricNamePrefix + "ops_total",
				Help: "Total number of badger blob operations",
			},
			[]string{"op"},
		),
		bytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: blobMetricNamePrefix + "bytes_written_total",
				Help: "Total bytes written to the badger blob store",
			},
		),
	}
	lsmSize := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: blobMetricNamePrefix + "lsm_size_bytes",
			Help: "Size of the badger LSM tree",
		},
		func() float64 {
			lsm, _ := d.DB().Size()
			return float64(lsm)
		},
	)
	vlogSize := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: blobMetricNamePrefix + "vlog_size_bytes",
			Help: "Size of the badger value log",
		},
		func() float64 {
			_, vlog := d.DB().Size()
			return float64(vlog)
		},
	)
	if err := d.promRegistry.Register(lsmSize); err != nil {
		return err
	}
	return d.promRegistry.Register(vlogSize)
}
