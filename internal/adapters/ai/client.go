package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/randomtoy/hex-backend/internal/domain/move"
	"github.com/randomtoy/hex-backend/internal/ports"
)

var ErrBadResponse = errors.New("malformed ai response")

type selectMoveResponse struct {
	Move string `json:"move"`
}

// Client asks a remote engine for moves over HTTP. The request body is the
// JSON form of ports.AIRequest; the engine answers {"move": "<token>"}.
type Client struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewClient(url string, client *http.Client, log *zap.Logger) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{url: url, client: client, log: log}
}

func (c *Client) RequestMove(ctx context.Context, in ports.AIRequest) (string, error) {
	reqBody, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var out selectMoveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if !move.IsValidToken(out.Move) {
		return "", fmt.Errorf("%w: %q", ErrBadResponse, out.Move)
	}

	c.log.Debug("remote ai answered",
		zap.String("game_id", in.GameID.String()),
		zap.Int("move_index", len(in.Moves)),
		zap.String("move", out.Move),
	)
	return out.Move, nil
}
