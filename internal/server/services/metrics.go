package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driveingest_registrations_total",
		Help: "Catalog registrations by outcome (created, deduplicated).",
	}, []string{"outcome"})

	partsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driveingest_multipart_parts_total",
		Help: "Multipart parts accepted.",
	})

	bytesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driveingest_bytes_received_total",
		Help: "Payload bytes accepted across single-shot uploads and multipart parts.",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driveingest_upload_sessions_total",
		Help: "Upload sessions by transition (created, finished, aborted).",
	}, []string{"transition"})
)
