// Package client is a typed HTTP client for the escrow room API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"coinflip_escrow/internal/domain"
)

// ErrPending is returned by Resolve while randomness is still being fulfilled.
var ErrPending = errors.New("randomness not fulfilled yet")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Balance is the body of GET /accounts/:id/balance.
type Balance struct {
	Account    domain.AccountID `json:"account"`
	Balance    uint64           `json:"balance"`
	BalanceSOL string           `json:"balance_sol"`
}

// RoomList is the body of GET /rooms.
type RoomList struct {
	Rooms    []domain.RoomView `json:"rooms"`
	MinStake uint64            `json:"min_stake"`
}

// ListOptions filters ListRooms.
type ListOptions struct {
	Status domain.RoomStatus
	Player domain.AccountID
	Limit  int
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateRoom opens a room. stakeSOL is a decimal SOL amount such as "0.05".
func (c *Client) CreateRoom(ctx context.Context, roomID, stakeSOL string) (*domain.RoomView, error) {
	var room domain.RoomView
	err := c.do(ctx, http.MethodPost, "/rooms", map[string]string{"room_id": roomID, "stake_sol": stakeSOL}, &room)
	return &room, err
}

func (c *Client) JoinRoom(ctx context.Context, roomID string) (*domain.RoomView, error) {
	var room domain.RoomView
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/join", struct{}{}, &room)
	return &room, err
}

func (c *Client) PlayRoom(ctx context.Context, roomID string, seed domain.Seed) (*domain.RoomView, error) {
	var room domain.RoomView
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/play", map[string]string{"seed": seed.String()}, &room)
	return &room, err
}

// ResolveRoom settles a processing room. It returns ErrPending while the server
// answers 202.
func (c *Client) ResolveRoom(ctx context.Context, room *domain.RoomView) (*domain.RoomView, error) {
	body := map[string]string{
		"seed":       room.Seed,
		"player_one": room.PlayerOne.String(),
		"player_two": room.PlayerTwo.String(),
	}
	var res domain.RoomView
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(room.ID)+"/resolve", body, &res)
	return &res, err
}

// WaitResolved calls ResolveRoom every interval until the room settles or ctx ends.
func (c *Client) WaitResolved(ctx context.Context, room *domain.RoomView, interval time.Duration) (*domain.RoomView, error) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		res, err := c.ResolveRoom(ctx, room)
		if !errors.Is(err, ErrPending) {
			return res, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) GetRoom(ctx context.Context, roomID string) (*domain.RoomView, error) {
	var room domain.RoomView
	err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID), nil, &room)
	return &room, err
}

func (c *Client) ListRooms(ctx context.Context, opts ListOptions) (*RoomList, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Player != "" {
		q.Set("player", opts.Player.String())
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/rooms"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list RoomList
	err := c.do(ctx, http.MethodGet, path, nil, &list)
	return &list, err
}

func (c *Client) Balance(ctx context.Context, account domain.AccountID) (*Balance, error) {
	var b Balance
	err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(account.String())+"/balance", nil, &b)
	return &b, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return ErrPending
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			apiErr.Code, apiErr.Message = e.Code, e.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}
