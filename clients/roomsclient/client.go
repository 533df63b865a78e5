// Package roomsclient is an HTTP client for the room, leaderboard, and
// stats endpoints. The bot uses it; external tooling can too.
package roomsclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mathrumble/mathrumble/internal/leaderboard"
	"github.com/mathrumble/mathrumble/internal/rooms"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateRoom creates a room and joins the creator onto team A.
func (c *Client) CreateRoom(req rooms.CreateRoomRequest) (rooms.JoinRoomResponse, error) {
	var resp rooms.JoinRoomResponse
	err := c.doJSON("POST", "/rooms", req, &resp)
	return resp, err
}

// JoinRoom joins an existing room by code.
func (c *Client) JoinRoom(roomCode string, req rooms.JoinRoomRequest) (rooms.JoinRoomResponse, error) {
	var resp rooms.JoinRoomResponse
	err := c.doJSON("POST", "/rooms/"+url.PathEscape(roomCode)+"/join", req, &resp)
	return resp, err
}

// GetRoom fetches room details by code.
func (c *Client) GetRoom(roomCode string) (rooms.RoomResponse, error) {
	var resp rooms.RoomResponse
	err := c.doJSON("GET", "/rooms/"+url.PathEscape(roomCode), nil, &resp)
	return resp, err
}

// Leaderboard fetches the ranked leaderboard. A non-positive limit takes
// the server default.
func (c *Client) Leaderboard(limit int) ([]leaderboard.Entry, error) {
	endpoint := "/leaderboard"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var entries []leaderboard.Entry
	err := c.doJSON("GET", endpoint, nil, &entries)
	return entries, err
}

// PlayerStats fetches one player's stat sheet.
func (c *Client) PlayerStats(userID string) (leaderboard.PlayerStats, error) {
	var stats leaderboard.PlayerStats
	err := c.doJSON("GET", "/player/"+url.PathEscape(userID), nil, &stats)
	return stats, err
}

func (c *Client) doJSON(method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, string(responseBody))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
