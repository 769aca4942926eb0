// Package monitor records boot metrics. An entrypoint that replaces its own
// process image cannot host a scrape endpoint, so the registry is written
// out in node-exporter textfile format instead — the usual arrangement for
// short-lived jobs. The flush is best-effort and never blocks or fails a
// startup.
package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/castellan-io/castellan/pkg/consts"
	"github.com/castellan-io/castellan/pkg/logger"
)

const textfileName = "castellan_boot.prom"

// Boot collects the metrics of one boot sequence.
type Boot struct {
	reg *prometheus.Registry

	gateSeconds prometheus.Gauge
	handoffTime *prometheus.GaugeVec
}

func NewBoot() *Boot {
	b := &Boot{
		reg: prometheus.NewRegistry(),
		gateSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "castellan_gate_duration_seconds",
			Help: "Time spent waiting for the store and applying migrations",
		}),
		handoffTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "castellan_handoff_timestamp_seconds",
			Help: "Unix time at which the process image was handed off, by role",
		}, []string{"role"}),
	}
	b.reg.MustRegister(b.gateSeconds)
	b.reg.MustRegister(b.handoffTime)
	return b
}

// ObserveGate records the readiness gate duration.
func (b *Boot) ObserveGate(d time.Duration) {
	b.gateSeconds.Set(d.Seconds())
}

// MarkHandoff stamps the moment the boot sequence reaches the replacer.
func (b *Boot) MarkHandoff(role consts.Role) {
	b.handoffTime.WithLabelValues(string(role)).Set(float64(time.Now().Unix()))
}

// Flush writes the registry to dir in textfile-collector format. A write
// into place would let the collector read a half-written file, so it goes
// through a temp file and a rename. Empty dir disables the flush; any error
// is logged and swallowed.
func (b *Boot) Flush(dir string) {
	if dir == "" {
		return
	}
	mfs, err := b.reg.Gather()
	if err != nil {
		logger.Log.Warn("boot metrics gather failed", "err", err)
		return
	}
	var buf bytes.Buffer
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			logger.Log.Warn("boot metrics encode failed", "err", err)
			return
		}
	}

	tmp := filepath.Join(dir, textfileName+".tmp")
	final := filepath.Join(dir, textfileName)
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		logger.Log.Warn("boot metrics write failed", "path", tmp, "err", err)
		return
	}
	if err := os.Rename(tmp, final); err != nil {
		logger.Log.Warn("boot metrics rename failed", "path", final, "err", err)
	}
}
