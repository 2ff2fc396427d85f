package remotebackend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auctionlab/bidding-engine-go/bidengine"
	"github.com/auctionlab/bidding-engine-go/remotebackend"
)

func Test_NewClient_RejectsEmptyBaseURL(t *testing.T) {
	_, err := remotebackend.NewClient("")

	assert.ErrorIs(t, err, remotebackend.ErrEmptyBaseURL)
}

func Test_PlaceBid_PostsBidRow(t *testing.T) {
	var received remotebackend.BidRow

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/bids", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, err := remotebackend.NewClient(server.URL)
	require.NoError(t, err)

	err = client.PlaceBid(context.Background(), "lot-1", 1050, "u1", "Ana")

	require.NoError(t, err)
	assert.Equal(t, "lot-1", received.ItemID)
	assert.Equal(t, int64(1050), received.Amount)
	assert.Equal(t, "u1", received.BidderID)
	assert.Equal(t, "Ana", received.BidderName)
	assert.False(t, received.PlacedAt.IsZero())
}

func Test_PlaceBid_NonSuccessStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := remotebackend.NewClient(server.URL)
	require.NoError(t, err)

	err = client.PlaceBid(context.Background(), "lot-1", 1050, "u1", "Ana")

	assert.ErrorIs(t, err, remotebackend.ErrRemoteUnavailable)
}

func Test_PlaceBid_TransportFailureIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client, err := remotebackend.NewClient(server.URL)
	require.NoError(t, err)

	err = client.PlaceBid(context.Background(), "lot-1", 1050, "u1", "Ana")

	assert.ErrorIs(t, err, remotebackend.ErrRemoteUnavailable)
}

func Test_UpdateFromRow_MapsToEngineUpdate(t *testing.T) {
	update := remotebackend.UpdateFromRow(remotebackend.BidRow{ItemID: "lot-1", Amount: 1050})

	assert.Equal(t, bidengine.Update{ItemID: "lot-1", NewPrice: 1050}, update)
}
