package reaper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/voxora/voxora/internal/clock"
	sessiondomain "github.com/voxora/voxora/internal/session/domain"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Sessions sessiondomain.Service
	Oracles  *OracleRegistry
	Config   Config `optional:"true"`
}

// Worker sweeps active sessions that their clients never closed. An oracle
// confirms the upstream fate where one is registered; otherwise only age past
// the maximum session lifetime forces a close. Every close goes through the
// session service, so the sweep bills the same way a client close does.
type Worker struct {
	log      *zap.Logger
	clock    clock.Clock
	sessions sessiondomain.Service
	oracles  *OracleRegistry
	cfg      Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log:      p.Log.Named("session.reaper"),
		clock:    p.Clock,
		sessions: p.Sessions,
		oracles:  p.Oracles,
		cfg:      p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("session sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps a single batch and reports how many sessions it closed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if w.sessions == nil {
		return 0, errors.New("reaper_unavailable")
	}

	active, err := w.sessions.ListActive(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, session := range active {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		didClose, err := w.sweep(ctx, session)
		if err != nil {
			w.log.Warn("failed to sweep session",
				zap.String("session_id", session.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if didClose {
			closed++
		}
	}
	return closed, nil
}

func (w *Worker) sweep(ctx context.Context, session sessiondomain.UsageSession) (bool, error) {
	age := w.clock.Now().Sub(session.StartTime)
	if age < w.cfg.MinAge {
		return false, nil
	}

	if oracle, ok := w.oracles.Lookup(session.ServiceType); ok {
		result, err := oracle.Lookup(ctx, session)
		switch {
		case err == nil:
			if result.Live {
				break
			}
			return true, w.closeConfirmed(ctx, session, result)
		case errors.Is(err, ErrSessionUnknown):
			// The provider never saw it or already forgot it; the
			// server's own elapsed time is the best measure left.
			return true, w.closeConfirmed(ctx, session, Result{})
		default:
			w.log.Warn("oracle lookup failed, falling back to age",
				zap.String("session_id", session.ID.String()),
				zap.Error(err),
			)
		}
	}

	if age <= w.cfg.MaxSessionAge {
		return false, nil
	}
	return true, w.forceClose(ctx, session, age)
}

// closeConfirmed ends a session the oracle reports dead. A provider-measured
// duration overrides the server's elapsed time.
func (w *Worker) closeConfirmed(ctx context.Context, session sessiondomain.UsageSession, result Result) error {
	req := sessiondomain.EndRequest{
		SessionRef: session.ID.String(),
		Status:     sessiondomain.SessionStatusCompleted,
		Trigger:    sessiondomain.CloseTriggerOracle,
	}
	if result.Duration > 0 {
		duration := result.Duration
		req.AuthoritativeDuration = &duration
	}

	resp, err := w.sessions.End(ctx, req)
	if err != nil {
		return err
	}
	if !resp.AlreadyClosed {
		w.log.Info("closed session confirmed dead",
			zap.String("session_id", session.ID.String()),
			zap.Int64("tokens_charged", resp.TokensCharged),
		)
	}
	return nil
}

// forceClose ends a session past the maximum lifetime. Billing is bounded by
// the same maximum, so an abandoned session never drains a balance forever.
func (w *Worker) forceClose(ctx context.Context, session sessiondomain.UsageSession, age time.Duration) error {
	resp, err := w.sessions.End(ctx, sessiondomain.EndRequest{
		SessionRef: session.ID.String(),
		Status:     sessiondomain.SessionStatusFailed,
		Trigger:    sessiondomain.CloseTriggerReaper,
	})
	if err != nil {
		return err
	}
	if !resp.AlreadyClosed {
		w.log.Info("force-closed stale session",
			zap.String("session_id", session.ID.String()),
			zap.Duration("age", age),
			zap.Int64("tokens_charged", resp.TokensCharged),
		)
	}
	return nil
}
