package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/plugin"
	"github.com/ayusman/mukha/internal/store"
)

// Register captures liveness-confirmed samples of a new user and stores
// them. The first sample must not match any other enrolled user.
func (a *App) Register(ctx context.Context, name string) (*store.User, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	if !a.session.TryLock() {
		return nil, ErrSessionActive
	}
	defer a.session.Unlock()

	users := a.config.Store.Users()
	if _, err := users.GetByName(name); err == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrUserExists, name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up %s: %w", name, err)
	}

	log := a.log.With(zap.String("user", name))
	log.Info("registration started", zap.Int("samples", a.config.RegistrationSamples))
	a.speaker.Say("Starting registration for " + name)

	res, err := a.runCapture(ctx, KindRegister, a.config.RegistrationSamples)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		log.Warn("registration capture failed", zap.Stringer("outcome", res.Outcome), zap.Int("samples", len(res.Samples)))
		if res.Outcome == capture.Cancelled {
			return nil, res.Err()
		}
		a.announce(ctx, "Registration failed. Please try again.")
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, res.Err())
	}

	existing, err := users.List()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if dup, found := a.matcher.CheckDuplicate(res.Samples[0], profiles(existing), name); found {
		log.Warn("duplicate identity", zap.String("existing", dup.User), zap.Float64("similarity", dup.Similarity))
		a.announce(ctx, "This face is already registered.")
		return nil, &DuplicateIdentityError{User: dup.User, Similarity: dup.Similarity}
	}

	u := &store.User{Name: name, LastUpdated: time.Now().UTC()}
	for _, s := range res.Samples {
		u.Embeddings = append(u.Embeddings, s.Encoding)
		u.HasGlasses = append(u.HasGlasses, s.Glasses)
		u.HasFacialHair = append(u.HasFacialHair, s.FacialHair)
	}
	if err := users.Create(u); err != nil {
		return nil, fmt.Errorf("save %s: %w", name, err)
	}

	log.Info("registration complete", zap.Duration("elapsed", res.Elapsed))
	a.announce(ctx, "Registration complete for "+name)

	a.config.Hooks.Fire(ctx, plugin.Notice{Event: plugin.EventRegistered, User: name, Params: registeredParams(len(res.Samples))})

	return u, nil
}

// registeredParams is the plugin payload for a completed registration.
func registeredParams(samples int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"samples":%d}`, samples))
}

// announce speaks a final outcome and waits for it. Failures are logged.
func (a *App) announce(ctx context.Context, text string) {
	if err := a.speaker.SayAndWait(ctx, text); err != nil {
		a.log.Debug("announcement failed", zap.String("text", text), zap.Error(err))
	}
}
