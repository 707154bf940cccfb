package store

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExportImport_RoundTrip(t *testing.T) {
	src := newTestStore(t)
	require.NoError(t, src.Users().Create(testUser("alice", 5)))
	require.NoError(t, src.Users().Create(testUser("bob", 3)))

	var buf bytes.Buffer
	require.NoError(t, src.ExportJSON(&buf))

	var raw map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	require.Contains(t, raw, "alice")
	for _, key := range []string{"embeddings", "has_glasses", "has_facial_hair", "last_updated"} {
		require.Contains(t, raw["alice"], key)
	}

	dst := newTestStore(t)
	report, err := dst.ImportJSON(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, report.Imported)
	require.Empty(t, report.Skipped)

	for _, name := range []string{"alice", "bob"} {
		want, err := src.Users().GetByName(name)
		require.NoError(t, err)
		got, err := dst.Users().GetByName(name)
		require.NoError(t, err)

		require.Equal(t, want.Embeddings, got.Embeddings, name)
		require.Equal(t, want.HasGlasses, got.HasGlasses, name)
		require.Equal(t, want.HasFacialHair, got.HasFacialHair, name)
		require.True(t, want.LastUpdated.Equal(got.LastUpdated), name)
	}
}

func TestImportJSON_SkipsExisting(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Users().Create(testUser("alice", 1)))

	in := `{"alice":{"embeddings":[[0.1]],"has_glasses":[false],"has_facial_hair":[false],"last_updated":"2024-01-01T00:00:00Z"},
	        "carol":{"embeddings":[[0.5]],"has_glasses":[true],"has_facial_hair":[false],"last_updated":"2024-01-01T00:00:00Z"}}`
	report, err := s.ImportJSON(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"carol"}, report.Imported)
	require.Equal(t, []string{"alice"}, report.Skipped)

	alice, err := s.Users().GetByName("alice")
	require.NoError(t, err)
	require.Len(t, alice.Embeddings, 1)
}

func TestImportJSON_RejectsMalformedProfiles(t *testing.T) {
	s := newTestStore(t)

	in := `{"a":{"embeddings":[[1]],"has_glasses":[true],"has_facial_hair":[false]},
	        "b":{"embeddings":[[1],[2]],"has_glasses":[true],"has_facial_hair":[false,false]}}`
	_, err := s.ImportJSON(strings.NewReader(in))
	require.ErrorIs(t, err, ErrInvalidProfile)

	n, err := s.Users().Count()
	require.NoError(t, err)
	require.Zero(t, n, "nothing is written when any profile is malformed")

	_, err = s.ImportJSON(strings.NewReader(`{"x":{"embeddings":[],"has_glasses":[],"has_facial_hair":[]}}`))
	require.ErrorIs(t, err, ErrInvalidProfile)

	_, err = s.ImportJSON(strings.NewReader(`not json`))
	require.Error(t, err)
}
