package ratesource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shipquote/internal/catalog"
)

func TestMockClientScalesWithWeight(t *testing.T) {
	light, err := MockClient{}.Rates(context.Background(), RateRequest{
		Parcels: []Parcel{{WeightLbs: 1, Dimensions: catalog.Dimensions{Length: 6, Width: 4, Height: 4}}},
	})
	require.NoError(t, err)
	require.Len(t, light, 2)
	require.Equal(t, "mock", light[0].Courier)
	require.Equal(t, int64(899+125), light[0].Price)

	heavy, err := MockClient{}.Rates(context.Background(), RateRequest{
		Courier: "ups",
		Parcels: []Parcel{{WeightLbs: 10, Dimensions: catalog.Dimensions{Length: 6, Width: 4, Height: 4}}},
	})
	require.NoError(t, err)
	require.Equal(t, "ups", heavy[1].Courier)
	require.Greater(t, heavy[0].Price, light[0].Price)
}

func TestDimensionalWeight(t *testing.T) {
	require.InDelta(t, 20.0, DimensionalWeight(catalog.Dimensions{Length: 139, Width: 4, Height: 5}), 1e-9)
	require.Zero(t, DimensionalWeight(catalog.Dimensions{}))
}

func TestMockClientHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := MockClient{}.Rates(ctx, RateRequest{})
	require.ErrorIs(t, err, context.Canceled)
}
