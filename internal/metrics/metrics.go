// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package metrics collects the prometheus instrumentation for cache
// builds and query evaluation. Nothing here persists to disk — it is
// scraped by the embedding process, consistent with the engine's
// "does not persist an index" non-goal.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups the counters and histograms an Engine registers once
// and shares across every image cache and query it drives.
type Collectors struct {
	CacheBuildSeconds  *prometheus.HistogramVec
	MatcherEvaluations prometheus.Counter
	HungarianDFSSteps  prometheus.Counter
	ACTrieHits         prometheus.Counter
	TasksSkipped       prometheus.Counter
	QuerySeconds       *prometheus.HistogramVec
}

// NewCollectors builds a fresh Collectors and registers them with reg. If
// reg is nil, prometheus.NewRegistry() is used and returned collectors are
// unregistered globally — callers that don't care about scraping can pass
// nil and simply ignore the metrics.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		CacheBuildSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dxscan",
			Subsystem: "cache",
			Name:      "build_seconds",
			Help:      "Time spent populating a derived index category during cache init.",
		}, []string{"category"}),
		MatcherEvaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dxscan",
			Subsystem: "matcher",
			Name:      "evaluations_total",
			Help:      "Number of is_X_matched evaluations performed.",
		}),
		HungarianDFSSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dxscan",
			Subsystem: "hungarian",
			Name:      "dfs_steps_total",
			Help:      "Number of augmenting-path DFS steps across all bipartite matches.",
		}),
		ACTrieHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dxscan",
			Subsystem: "ahocorasick",
			Name:      "hits_total",
			Help:      "Number of pattern hits reported by Aho-Corasick scans.",
		}),
		TasksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dxscan",
			Subsystem: "driver",
			Name:      "tasks_skipped_total",
			Help:      "Tasks that became no-ops after a find-first cancellation.",
		}),
		QuerySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dxscan",
			Subsystem: "driver",
			Name:      "query_seconds",
			Help:      "End-to-end latency of a find_* query.",
		}, []string{"kind"}),
	}

	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		c.CacheBuildSeconds,
		c.MatcherEvaluations,
		c.HungarianDFSSteps,
		c.ACTrieHits,
		c.TasksSkipped,
		c.QuerySeconds,
	)
	return c
}
