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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type stateMetrics struct {
	epochNum               prometheus.Gauge
	blockHeight            prometheus.Gauge
	treasuryBalance        prometheus.Gauge
	councilSpendingCap     prometheus.Gauge
	councilSpentAmount     prometheus.Gauge
	recipients             prometheus.Gauge
	txsTotal               *prometheus.CounterVec
	proposalsResolvedTotal *prometheus.CounterVec
	settlementPayouts      prometheus.Counter
	settlementPaidAmount   prometheus.Counter
	settlementDeficiencies prometheus.Counter
	blockApplyLatency      prometheus.Histogram
}

func (m *stateMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.epochNum = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "pgf_epoch_int",
		Help: "current epoch number",
	})
	m.blockHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "pgf_block_height_int",
		Help: "height of the last applied block",
	})
	m.treasuryBalance = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "pgf_treasury_balance",
		Help: "PGF treasury balance",
	})
	m.councilSpendingCap = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "pgf_council_spending_cap",
		Help: "spending cap of the active council, zero without a council",
	})
	m.councilSpentAmount = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "pgf_council_spent_amount",
		Help: "amount spent by the active council",
	})
	m.recipients = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "pgf_continuous_recipients",
		Help: "number of continuous funding recipients",
	})
	m.txsTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgf_transactions_total",
			Help: "applied transactions by kind and result",
		},
		[]string{"kind", "result"},
	)
	m.proposalsResolvedTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgf_proposals_resolved_total",
			Help: "resolved PGF proposals by outcome",
		},
		[]string{"outcome"},
	)
	m.settlementPayouts = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "pgf_settlement_payouts_total",
		Help: "continuous funding payouts made",
	})
	m.settlementPaidAmount = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "pgf_settlement_paid_amount_total",
		Help: "total amount paid by settlement",
	})
	m.settlementDeficiencies = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "pgf_settlement_deficiencies_total",
		Help: "continuous funding payouts skipped for lack of allowance or balance",
	})
	m.blockApplyLatency = promautoFactory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pgf_block_apply_latency_seconds",
			Help:    "time taken to apply a block",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
	)
}
