package app

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/match"
	"github.com/ayusman/mukha/internal/plugin"
	"github.com/ayusman/mukha/internal/store"
)

// AuthResult is the outcome of one authentication attempt. Outcome is one
// of the store.Outcome* values.
type AuthResult struct {
	match.Result
	Outcome string `json:"outcome"`
	Samples int    `json:"samples"`
}

// Authenticate captures samples and matches them against every enrolled
// user. Having no users or never confirming enough samples is a no-match
// result, not an error. Every attempt is recorded.
func (a *App) Authenticate(ctx context.Context) (AuthResult, error) {
	if !a.session.TryLock() {
		return AuthResult{}, ErrSessionActive
	}
	defer a.session.Unlock()

	users, err := a.config.Store.Users().List()
	if err != nil {
		return AuthResult{}, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		a.log.Info("authentication skipped, no users registered")
		out := AuthResult{Outcome: store.OutcomeNoUsers}
		a.record(out)
		a.announce(ctx, "No users registered.")
		return out, nil
	}

	a.log.Info("authentication started", zap.Int("users", len(users)), zap.Int("samples", a.config.AuthSamples))

	res, err := a.runCapture(ctx, KindAuthenticate, a.config.AuthSamples)
	if err != nil {
		return AuthResult{}, err
	}
	if res.Outcome == capture.Cancelled {
		return AuthResult{}, res.Err()
	}
	if !res.OK() {
		a.log.Warn("authentication capture failed", zap.Int("samples", len(res.Samples)), zap.Error(res.Err()))
		out := AuthResult{Outcome: store.OutcomeCaptureFailed, Samples: len(res.Samples)}
		a.record(out)
		a.announce(ctx, "Authentication failed.")
		a.config.Hooks.Fire(ctx, plugin.Notice{Event: plugin.EventRejected})
		return out, nil
	}

	out := AuthResult{
		Result:  a.matcher.Authenticate(res.Samples, profiles(users)),
		Samples: len(res.Samples),
	}

	if out.Matched {
		out.Outcome = store.OutcomeMatched
		a.log.Info("authenticated", zap.String("user", out.MatchedUser), zap.Float64("confidence", out.Confidence))
		a.record(out)
		if err := a.config.Store.Settings().Set(store.SettingLastUser, out.MatchedUser); err != nil {
			a.log.Warn("saving last user", zap.Error(err))
		}
		a.announce(ctx, "Welcome, "+out.MatchedUser)
		a.config.Hooks.Fire(ctx, plugin.Notice{Event: plugin.EventAuthenticated, User: out.MatchedUser, Confidence: out.Confidence})
		return out, nil
	}

	out.Outcome = store.OutcomeRejected
	a.log.Info("authentication rejected", zap.Int("scores", len(out.PerSample)))
	a.record(out)
	a.announce(ctx, "Face not recognized.")
	a.config.Hooks.Fire(ctx, plugin.Notice{Event: plugin.EventRejected})
	return out, nil
}

// record stores the attempt. Failures are logged.
func (a *App) record(out AuthResult) {
	attempt := &store.Attempt{
		UserName:   out.MatchedUser,
		Matched:    out.Matched,
		Confidence: out.Confidence,
		Outcome:    out.Outcome,
	}
	if len(out.PerSample) > 0 {
		scores, err := json.Marshal(out.PerSample)
		if err != nil {
			a.log.Warn("encoding attempt scores", zap.Error(err))
		} else {
			attempt.Scores = scores
		}
	}
	if err := a.config.Store.Attempts().Create(attempt); err != nil {
		a.log.Warn("recording attempt", zap.Error(err))
	}
}
