package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "social_games_bot"

// Marriage events
const (
	MarriageCreated    = "created"
	MarriageReconciled = "reconciled"
	MarriageDissolved  = "dissolved"
)

type Metrics struct {
	registry *prometheus.Registry

	commands  *prometheus.CounterVec
	marriages *prometheus.CounterVec
	shots     *prometheus.CounterVec
	bans      prometheus.Counter
	banned    prometheus.Counter
	teaLiters prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Recognized chat commands by kind.",
		}, []string{"command"}),
		marriages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marriage_events_total",
			Help:      "Marriage registry state changes.",
		}, []string{"event"}),
		shots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duel_shots_total",
			Help:      "Duel shots by result.",
		}, []string{"result"}),
		bans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bans_total",
			Help:      "Bans issued by duels and admins.",
		}),
		banned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "banned_messages_total",
			Help:      "Messages refused because the sender is banned.",
		}),
		teaLiters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tea_liters_total",
			Help:      "Liters of tea drunk.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.commands, m.marriages, m.shots, m.bans, m.banned, m.teaLiters,
	)

	return m
}

func (m *Metrics) CommandHandled(command string) {
	m.commands.WithLabelValues(command).Inc()
}

func (m *Metrics) MarriageEvent(event string) {
	m.marriages.WithLabelValues(event).Inc()
}

func (m *Metrics) DuelShot(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.shots.WithLabelValues(result).Inc()
}

func (m *Metrics) BanIssued() {
	m.bans.Inc()
}

func (m *Metrics) BannedMessage() {
	m.banned.Inc()
}

func (m *Metrics) TeaDrunk(liters float64) {
	m.teaLiters.Add(liters)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics: Failed to shut down server", "error", err)
		}
	}()

	slog.Info("metrics: Serving", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
