package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MovesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hex_moves_applied_total",
			Help: "Moves applied to hosted games",
		},
		[]string{"source"},
	)
	MovesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hex_moves_rejected_total",
			Help: "Move submissions rejected by the session",
		},
		[]string{"reason"},
	)
	PremovesDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hex_premoves_discarded_total",
			Help: "Premoves dropped because the game moved on or they became illegal",
		},
	)
	GamesEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hex_games_ended_total",
			Help: "Games that reached a terminal state",
		},
		[]string{"outcome"},
	)
	Saves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hex_game_saves_total",
			Help: "Persist cycles run by the autosave agent",
		},
		[]string{"result"},
	)
	AIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hex_ai_requests_total",
			Help: "Move requests sent to AI sources",
		},
		[]string{"kind", "result"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hex_rate_limiter_blocked_total",
			Help: "Requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)
	HostedGames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hex_hosted_games",
			Help: "Games currently held in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(MovesApplied)
	prometheus.MustRegister(MovesRejected)
	prometheus.MustRegister(PremovesDiscarded)
	prometheus.MustRegister(GamesEnded)
	prometheus.MustRegister(Saves)
	prometheus.MustRegister(AIRequests)
	prometheus.MustRegister(RLBlocked)
	prometheus.MustRegister(HostedGames)
}
