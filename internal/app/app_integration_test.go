package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/detector"
	"github.com/ayusman/mukha/internal/store"
)

type recordingSpeaker struct {
	mu      sync.Mutex
	said    []string
	waited  []string
	closed  bool
	waitErr error
}

func (r *recordingSpeaker) Say(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.said = append(r.said, text)
}

func (r *recordingSpeaker) SayAndWait(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waited = append(r.waited, text)
	return r.waitErr
}

func (r *recordingSpeaker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSpeaker) Announcements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.waited...)
}

// axis returns a unit encoding along dimension i.
func axis(i int) []float64 {
	v := make([]float64, detector.EncodingSize)
	v[i] = 1
	return v
}

type harness struct {
	app     *App
	store   *store.Store
	camera  *capture.MockCamera
	det     *detector.MockDetector
	speaker *recordingSpeaker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	frames := capture.BlankFrames(1, 640, 480)
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})

	h := &harness{
		store:   st,
		camera:  capture.NewMockCamera(frames, true),
		det:     detector.NewMockDetector(),
		speaker: &recordingSpeaker{},
	}
	h.app = New(Config{
		Store:               st,
		Camera:              h.camera,
		Detector:            h.det,
		Speaker:             h.speaker,
		RegistrationSamples: 2,
		AuthSamples:         2,
		MaxDuration:         3 * time.Second,
	})
	return h
}

// subject scripts the detector with a live subject whose encoding is enc.
func (h *harness) subject(enc []float64, samples int) {
	spec := detector.FaceSpec{CenterX: 320, CenterY: 240, Encoding: enc}
	h.det.SetSequence(detector.LivenessSequence(spec, samples), false)
}

func (h *harness) enroll(t *testing.T, name string, embeddings ...[]float64) {
	t.Helper()
	u := &store.User{Name: name, Embeddings: embeddings}
	for range embeddings {
		u.HasGlasses = append(u.HasGlasses, false)
		u.HasFacialHair = append(u.HasFacialHair, false)
	}
	require.NoError(t, h.store.Users().Create(u))
}

func TestApp_Register(t *testing.T) {
	h := newHarness(t)
	h.subject(axis(0), 2)

	u, err := h.app.Register(context.Background(), "  alice ")
	require.NoError(t, err)
	require.Equal(t, "alice", u.Name)

	stored, err := h.store.Users().GetByName("alice")
	require.NoError(t, err)
	require.Len(t, stored.Embeddings, 2)
	require.Equal(t, axis(0), stored.Embeddings[0])
	require.Equal(t, []bool{false, false}, stored.HasGlasses)
	require.Equal(t, []bool{false, false}, stored.HasFacialHair)

	require.Contains(t, h.speaker.Announcements(), "Registration complete for alice")
	require.False(t, h.camera.IsOpen(), "camera is released after the flow")
	require.False(t, h.app.Busy())
}

func TestApp_Register_Rejections(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.app.Register(context.Background(), "   ")
		require.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("existing user is rejected before capture", func(t *testing.T) {
		h := newHarness(t)
		h.enroll(t, "alice", axis(0))

		_, err := h.app.Register(context.Background(), "alice")
		require.ErrorIs(t, err, store.ErrUserExists)
		require.Zero(t, h.det.Calls())
	})

	t.Run("duplicate identity", func(t *testing.T) {
		h := newHarness(t)
		h.enroll(t, "alice", axis(3), axis(0))
		h.subject(axis(0), 2)

		_, err := h.app.Register(context.Background(), "bob")

		var dup *DuplicateIdentityError
		require.ErrorAs(t, err, &dup)
		require.Equal(t, "alice", dup.User)
		require.InDelta(t, 1.0, dup.Similarity, 1e-12)

		_, err = h.store.Users().GetByName("bob")
		require.ErrorIs(t, err, store.ErrNotFound, "no profile is written")
		require.Contains(t, h.speaker.Announcements(), "This face is already registered.")
	})

	t.Run("capture timeout", func(t *testing.T) {
		h := newHarness(t)
		h.app.config.MaxDuration = 150 * time.Millisecond
		h.det.SetFace(nil)

		_, err := h.app.Register(context.Background(), "carol")
		require.ErrorIs(t, err, ErrCaptureFailed)
		require.ErrorIs(t, err, capture.ErrCaptureTimeout)

		n, err := h.store.Users().Count()
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("cancelled", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.app.Register(ctx, "dave")
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, ErrCaptureFailed)
	})
}

func TestApp_Authenticate_Match(t *testing.T) {
	h := newHarness(t)
	h.enroll(t, "alice", axis(0), axis(1))
	h.enroll(t, "bob", axis(5))
	h.subject(axis(0), 2)

	res, err := h.app.Authenticate(context.Background())
	require.NoError(t, err)

	require.True(t, res.Matched)
	require.Equal(t, "alice", res.MatchedUser)
	require.Equal(t, store.OutcomeMatched, res.Outcome)
	require.InDelta(t, 1.0, res.Confidence, 1e-12)
	require.Equal(t, 2, res.Samples)

	attempts, err := h.store.Attempts().List(0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, "alice", attempts[0].UserName)
	require.True(t, attempts[0].Matched)
	require.Contains(t, string(attempts[0].Scores), `"user":"alice"`)

	last, err := h.store.Settings().Get(store.SettingLastUser)
	require.NoError(t, err)
	require.Equal(t, "alice", last)

	require.Contains(t, h.speaker.Announcements(), "Welcome, alice")
}

func TestApp_Authenticate_Rejected(t *testing.T) {
	h := newHarness(t)
	h.enroll(t, "alice", axis(0))
	h.subject(axis(9), 2)

	res, err := h.app.Authenticate(context.Background())
	require.NoError(t, err)
	require.False(t, res.Matched)
	require.Empty(t, res.MatchedUser)
	require.Equal(t, store.OutcomeRejected, res.Outcome)

	// alice fails on the first sample, so only one score is recorded
	require.Len(t, res.PerSample, 1)

	_, err = h.store.Settings().Get(store.SettingLastUser)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Contains(t, h.speaker.Announcements(), "Face not recognized.")
}

func TestApp_Authenticate_NoUsers(t *testing.T) {
	h := newHarness(t)

	res, err := h.app.Authenticate(context.Background())
	require.NoError(t, err)
	require.False(t, res.Matched)
	require.Equal(t, store.OutcomeNoUsers, res.Outcome)
	require.Zero(t, h.det.Calls(), "no capture without users")
	require.Zero(t, h.camera.Reads())

	attempts, err := h.store.Attempts().List(0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, store.OutcomeNoUsers, attempts[0].Outcome)
}

func TestApp_Authenticate_CaptureFailureIsNoMatch(t *testing.T) {
	h := newHarness(t)
	h.enroll(t, "alice", axis(0))
	h.app.config.MaxDuration = 150 * time.Millisecond
	h.det.SetFace(nil)

	res, err := h.app.Authenticate(context.Background())
	require.NoError(t, err)
	require.False(t, res.Matched)
	require.Equal(t, store.OutcomeCaptureFailed, res.Outcome)

	attempts, err := h.store.Attempts().List(0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, store.OutcomeCaptureFailed, attempts[0].Outcome)
}

func TestApp_SessionActive(t *testing.T) {
	h := newHarness(t)
	h.enroll(t, "alice", axis(0))

	h.app.session.Lock()
	require.True(t, h.app.Busy())

	_, err := h.app.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrSessionActive)
	_, err = h.app.Register(context.Background(), "bob")
	require.ErrorIs(t, err, ErrSessionActive)

	h.app.session.Unlock()
	require.False(t, h.app.Busy())
}

func TestApp_PreviewDuringCapture(t *testing.T) {
	h := newHarness(t)
	h.enroll(t, "alice", axis(0))
	h.subject(axis(0), 2)

	stop := h.app.Preview().WatchFrames()
	defer stop()
	updates, unsubscribe := h.app.Preview().Subscribe(64)

	var (
		wg    sync.WaitGroup
		kinds []string
		maxN  int
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for snap := range updates {
			if snap.Active {
				kinds = append(kinds, snap.Kind)
			}
			maxN = max(maxN, snap.Status.Samples)
		}
	}()

	_, err := h.app.Authenticate(context.Background())
	require.NoError(t, err)
	unsubscribe()
	wg.Wait()

	require.NotEmpty(t, kinds)
	require.Equal(t, KindAuthenticate, kinds[0])
	require.Positive(t, maxN)

	jpeg, seq := h.app.Preview().Frame()
	require.NotEmpty(t, jpeg, "frames are encoded while a viewer is watching")
	require.Greater(t, seq, uint64(0))
	require.False(t, h.app.Preview().Latest().Active)
}

func TestApp_Close(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.app.Close())
	require.True(t, h.speaker.closed)
}

func TestApp_WatchAuthenticatesOnMotion(t *testing.T) {
	h := newHarness(t)
	h.enroll(t, "alice", axis(0))
	h.subject(axis(0), 2)

	// a black frame followed by a white one reads as motion
	frames := capture.BlankFrames(2, 640, 480)
	frames[1].SetTo(gocv.NewScalar(255, 255, 255, 0))
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	h.camera.SetFrames(frames)
	h.app.config.Watch = WatchConfig{IdleFPS: 50, ActiveFPS: 50, Cooldown: time.Hour}.withDefaults()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make(chan AuthResult, 1)
	err := h.app.Watch(ctx, func(res AuthResult, err error) {
		if err == nil {
			results <- res
		}
		cancel()
	})
	require.NoError(t, err)

	select {
	case res := <-results:
		require.Equal(t, store.OutcomeMatched, res.Outcome)
		require.Equal(t, "alice", res.MatchedUser)
	default:
		t.Fatal("watch never attempted authentication")
	}
	require.False(t, h.camera.IsOpen())
}
