package businessflow

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Invoices opened for an owner that had no pending invoice
	invoicesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summit_invoices_created_total",
			Help: "Total number of invoices created",
		},
	)

	// Invoice repricings partitioned by pricing tier
	invoiceRecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_invoice_recompute_total",
			Help: "Total number of invoice recomputations by pricing tier",
		},
		[]string{"tier"},
	)

	// Participants registered, partitioned by entry mode (single, bulk)
	participantsAddedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_participants_added_total",
			Help: "Total number of participants registered",
		},
		[]string{"mode"},
	)

	// Rejected bulk lines
	bulkLineErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summit_bulk_line_errors_total",
			Help: "Total number of rejected bulk participant lines",
		},
	)

	// Proof of payment uploads partitioned by outcome
	proofUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_proof_uploads_total",
			Help: "Total number of proof of payment uploads by outcome",
		},
		[]string{"outcome"},
	)

	// Staff status changes partitioned by source, target and whether they left the standard lifecycle
	paymentStatusChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_payment_status_changes_total",
			Help: "Total number of invoice status changes made by staff",
		},
		[]string{"from", "to", "override"},
	)

	// Verification and welcome emails partitioned by kind and outcome
	emailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_emails_sent_total",
			Help: "Total number of notification emails dispatched",
		},
		[]string{"kind", "outcome"},
	)

	// Login attempts partitioned by outcome
	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"},
	)
)

func recordStatusChange(from, to string, override bool) {
	paymentStatusChangesTotal.WithLabelValues(from, to, strconv.FormatBool(override)).Inc()
}
