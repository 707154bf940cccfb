package app

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ayusman/mukha/internal/store"
)

func TestDuplicateIdentityError(t *testing.T) {
	var err error = &DuplicateIdentityError{User: "alice", Similarity: 0.7}
	require.EqualError(t, err, "face already registered as alice (similarity 0.700)")

	var dup *DuplicateIdentityError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, "alice", dup.User)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "alice", want: "alice"},
		{in: "  bob\t", want: "bob"},
		{in: "Mary Ann", want: "Mary Ann"},
		{in: "", wantErr: true},
		{in: " \n ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeName(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestProfiles(t *testing.T) {
	users := []*store.User{
		{Name: "alice", Embeddings: [][]float64{{1, 0}}, HasGlasses: []bool{true}, HasFacialHair: []bool{false}},
		{Name: "bob", Embeddings: [][]float64{{0, 1}, {0.5, 0.5}}, HasGlasses: []bool{false, false}, HasFacialHair: []bool{true, true}},
	}

	got := profiles(users)
	require.Len(t, got, 2)
	require.Equal(t, "alice", got[0].Name)
	require.Equal(t, [][]float64{{1, 0}}, got[0].Embeddings)
	require.Equal(t, []bool{true}, got[0].HasGlasses)
	require.Equal(t, "bob", got[1].Name)
	require.Equal(t, []bool{true, true}, got[1].HasFacialHair)

	require.Empty(t, profiles(nil))
}

func TestNew_Defaults(t *testing.T) {
	a := New(Config{})
	require.Equal(t, RegistrationSamples, a.config.RegistrationSamples)
	require.Equal(t, AuthSamples, a.config.AuthSamples)
	require.Positive(t, a.config.MaxDuration)
	require.Equal(t, IdleFPS, a.config.Watch.IdleFPS)
	require.Equal(t, ActiveFPS, a.config.Watch.ActiveFPS)
	require.Equal(t, Cooldown, a.config.Watch.Cooldown)
	require.NotNil(t, a.Preview())
	require.NotNil(t, a.Matcher())
	require.False(t, a.Busy())
}

func TestWatchConfig_WithDefaults(t *testing.T) {
	c := WatchConfig{IdleFPS: 2, Cooldown: -time.Second}.withDefaults()
	require.Equal(t, 2, c.IdleFPS)
	require.Equal(t, ActiveFPS, c.ActiveFPS)
	require.Equal(t, IdleTimeout, c.IdleTimeout)
	require.Zero(t, c.Cooldown)
}

func TestRegisteredParams(t *testing.T) {
	var got map[string]int
	require.NoError(t, json.Unmarshal(registeredParams(5), &got))
	require.Equal(t, map[string]int{"samples": 5}, got)
}
