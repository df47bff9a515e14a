package oracle

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
)

// Client talks to a remote VRF gateway.
type Client struct {
	baseURL    string
	apiKey     string
	publicKey  ed25519.PublicKey
	httpClient *http.Client
}

var _ escrow.Oracle = (*Client)(nil)

// NewClient creates a gateway client. When publicKey is set, every fulfilled value is
// verified before it is returned.
func NewClient(baseURL, apiKey string, publicKey ed25519.PublicKey) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		publicKey: publicKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Request schedules fulfillment for seed
func (c *Client) Request(ctx context.Context, seed domain.Seed) error {
	body, err := json.Marshal(requestBody{Seed: seed.String()})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/randomness", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	case http.StatusConflict:
		return ErrSeedInUse
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("oracle API error: %s - %s", resp.Status, string(b))
	}
}

// Poll returns the fulfilled randomness for seed, if any
func (c *Client) Poll(ctx context.Context, seed domain.Seed) (domain.Randomness, bool, error) {
	var value domain.Randomness

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/randomness/"+seed.String(), nil)
	if err != nil {
		return value, false, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return value, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return value, false, ErrUnknownSeed
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return value, false, fmt.Errorf("oracle API error: %s - %s", resp.Status, string(b))
	}

	var st StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return value, false, err
	}
	if !st.Fulfilled {
		return value, false, nil
	}

	value, err = domain.ParseRandomness(st.Randomness)
	if err != nil {
		return value, false, err
	}
	if c.publicKey != nil && !Verify(c.publicKey, seed, value) {
		return domain.Randomness{}, false, ErrBadProof
	}
	return value, true, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
