package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DraftsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drafts_generated_total",
			Help: "Total email drafts stored by generation",
		},
	)

	GenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "draft_generation_failures_total",
			Help: "Total failed draft generation requests",
		},
	)

	CampaignLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_launches_total",
			Help: "Launch requests by outcome",
		},
		[]string{"outcome"},
	)

	JobsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_scheduled_total",
			Help: "Total scheduled email jobs created by launches",
		},
	)

	JobsDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_dispatched_total",
			Help: "Total due jobs published to the delivery queue",
		},
	)

	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed emails",
		},
	)
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(DraftsGenerated)
		prometheus.MustRegister(GenerationFailures)
		prometheus.MustRegister(CampaignLaunches)
		prometheus.MustRegister(JobsScheduled)
		prometheus.MustRegister(JobsDispatched)
		prometheus.MustRegister(EmailsSent)
		prometheus.MustRegister(EmailFailures)
	})
}
