package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pizzad_runs_processed_total",
		Help: "The total number of processed pipeline runs",
	})

	perf = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "pizzad_stage_seconds",
		Help: "Wall time of the pipeline stages",
	}, []string{"stage"})
)
