package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/randomtoy/hex-backend/internal/adapters/ai"
	"github.com/randomtoy/hex-backend/internal/ports"
)

func TestClient_RequestMove(t *testing.T) {
	var got ports.AIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"move":"d4"}`))
	}))
	defer srv.Close()

	c := ai.NewClient(srv.URL, nil, zap.NewNop())
	req := ports.AIRequest{
		GameID:  uuid.New(),
		Size:    7,
		Player:  1,
		Moves:   []string{"a1"},
		CanSwap: true,
	}

	token, err := c.RequestMove(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "d4", token)
	assert.Equal(t, req.GameID, got.GameID)
	assert.Equal(t, 7, got.Size)
	assert.Equal(t, 1, got.Player)
	assert.Equal(t, []string{"a1"}, got.Moves)
	assert.True(t, got.CanSwap)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "bad status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
		{
			name: "malformed token",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"move":"Z0"}`))
			},
			wantErr: ai.ErrBadResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := ai.NewClient(srv.URL, nil, zap.NewNop()).RequestMove(context.Background(), ports.AIRequest{})

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ai.NewClient(srv.URL, nil, zap.NewNop()).RequestMove(ctx, ports.AIRequest{})

	require.ErrorIs(t, err, context.DeadlineExceeded)
}
