// Package remotebackend implements the optional authoritative backend
// adapter. It keeps the remote row shape out of the engine: the HTTP wire
// format lives here, and UpdateFromRow is the single mapping point between a
// remote bid row and the engine's internal update shape.
package remotebackend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/auctionlab/bidding-engine-go/bidengine"
)

// ErrEmptyBaseURL is returned when a client is created without a base URL.
var ErrEmptyBaseURL = errors.New("base url must not be empty")

// ErrRemoteUnavailable wraps transport failures talking to the remote backend.
var ErrRemoteUnavailable = errors.New("remote backend unavailable")

const (
	defaultTimeout = 2 * time.Second
	bidsPath       = "/bids"
)

var wireJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// BidRow is the remote backend's row shape for a placed bid.
type BidRow struct {
	ItemID     string    `json:"item_id"`
	Amount     int64     `json:"amount"`
	BidderID   string    `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	PlacedAt   time.Time `json:"placed_at"`
}

// UpdateFromRow maps a remote bid row to the engine's update shape.
func UpdateFromRow(row BidRow) bidengine.Update {
	return bidengine.Update{ItemID: row.ItemID, NewPrice: row.Amount}
}

// Client posts accepted bids to the remote marketplace backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option defines a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = httpClient
		return nil
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = timeout
		return nil
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, option := range options {
		if err := option(client); err != nil {
			return nil, err
		}
	}

	return client, nil
}

// PlaceBid posts the bid as a row to the remote backend. Transport failures
// and non-2xx responses are errors; the engine treats any error as a
// degradation and falls back to its local ledger.
func (c *Client) PlaceBid(ctx context.Context, itemID string, amount int64, bidderID string, bidderName string) error {
	row := BidRow{
		ItemID:     itemID,
		Amount:     amount,
		BidderID:   bidderID,
		BidderName: bidderName,
		PlacedAt:   time.Now().UTC(),
	}

	payload, err := wireJSON.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding bid row: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bidsPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return errors.Join(ErrRemoteUnavailable, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, response.StatusCode)
	}

	return nil
}

// Ensure Client satisfies the engine's remote backend interface.
var _ bidengine.RemoteBackend = (*Client)(nil)
