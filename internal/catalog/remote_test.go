package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRemoteResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/shipping-profiles:resolve", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Service-Key"))

		var body resolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, []string{"SKU-1"}, body.SKUs)
		require.Equal(t, []string{}, body.IDs)
		require.Equal(t, []string{"Desk"}, body.Titles)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"profiles":[{"id":"p1","sku":"SKU-1","weight":12.5,"dimensions":{"length":20,"width":10,"height":5},"shipsAlone":true}]}`))
	}))
	defer srv.Close()

	remote := NewRemote(RemoteConfig{BaseURL: srv.URL + "/", ServiceKey: "secret", Timeout: time.Second, MaxAttempts: 1, Logger: zerolog.Nop()})
	profiles, err := remote.Resolve(context.Background(), []string{"SKU-1"}, nil, []string{"Desk"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Equal(t, "SKU-1", profiles[0].SKU)
	require.Equal(t, 12.5, profiles[0].WeightLbs)
	require.Equal(t, &Dimensions{Length: 20, Width: 10, Height: 5}, profiles[0].Dimensions)
	require.True(t, profiles[0].ShipsAlone)
	require.True(t, profiles[0].NeedsShipping())
}

func TestRemoteResolveUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	remote := NewRemote(RemoteConfig{BaseURL: srv.URL, MaxAttempts: 1, Logger: zerolog.Nop()})
	_, err := remote.Resolve(context.Background(), []string{"SKU-1"}, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}

func TestRemoteResolveSkipsEmptyBatch(t *testing.T) {
	remote := NewRemote(RemoteConfig{BaseURL: "http://127.0.0.1:1", Logger: zerolog.Nop()})
	profiles, err := remote.Resolve(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	require.Empty(t, profiles)
}
