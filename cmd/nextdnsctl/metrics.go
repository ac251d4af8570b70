package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Travis-Britz/nextdns"
)

// syncResult is the outcome of reconciling one profile list.
type syncResult struct {
	ProfileID string
	Kind      nextdns.ListKind
	Summary   nextdns.Summary
	Err       error
}

func (r syncResult) print(w io.Writer, dryRun bool) {
	prefix := ""
	if dryRun {
		prefix = "(dry run) "
	}
	fmt.Fprintf(w, "%s%s %s: %s\n", prefix, r.ProfileID, r.Kind, r.Summary)
	for _, f := range r.Summary.Failures {
		fmt.Fprintf(w, "  failed: %s\n", f)
	}
}

// writeMetrics records results as gauges for the node_exporter textfile collector.
func writeMetrics(path string, results []syncResult) error {
	reg := prometheus.NewRegistry()
	entries := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nextdnsctl",
		Name:      "sync_entries",
		Help:      "Entries handled by the last sync, by outcome.",
	}, []string{"profile", "list", "result"})
	success := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nextdnsctl",
		Name:      "sync_success",
		Help:      "Whether the last sync finished without errors.",
	}, []string{"profile", "list"})
	lastRun := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nextdnsctl",
		Name:      "sync_last_run_timestamp_seconds",
		Help:      "Unix time of the last sync.",
	}, []string{"profile", "list"})
	reg.MustRegister(entries, success, lastRun)

	for _, r := range results {
		list := string(r.Kind)
		entries.WithLabelValues(r.ProfileID, list, "added").Set(float64(r.Summary.Added))
		entries.WithLabelValues(r.ProfileID, list, "removed").Set(float64(r.Summary.Removed))
		entries.WithLabelValues(r.ProfileID, list, "updated").Set(float64(r.Summary.Updated))
		entries.WithLabelValues(r.ProfileID, list, "unchanged").Set(float64(r.Summary.Unchanged))
		entries.WithLabelValues(r.ProfileID, list, "failed").Set(float64(r.Summary.Failed()))
		ok := 0.0
		if r.Err == nil {
			ok = 1
		}
		success.WithLabelValues(r.ProfileID, list).Set(ok)
		lastRun.WithLabelValues(r.ProfileID, list).SetToCurrentTime()
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("error writing metrics: %w", err)
	}
	return nil
}
