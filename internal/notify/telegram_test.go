package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender(srv.URL, "bot-token", "chat-42")
	err := s.Send(context.Background(), "CEDEAR signals (1)", "VIST BUY local")
	require.NoError(t, err)

	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "chat-42", gotPayload["chat_id"])
	assert.Equal(t, "CEDEAR signals (1)\nVIST BUY local", gotPayload["text"])
}

func TestTelegramSendTruncates(t *testing.T) {
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
	}))
	defer srv.Close()

	s := NewTelegramSender(srv.URL, "tok", "chat")
	// Multi-byte runes right at the cut point must not be split.
	err := s.Send(context.Background(), "t", strings.Repeat("ñ", 3000))
	require.NoError(t, err)

	text := gotPayload["text"]
	assert.LessOrEqual(t, len(text), telegramMaxLen)
	assert.True(t, utf8.ValidString(text))
	assert.True(t, strings.HasSuffix(text, "..."))
}

func TestTelegramSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender(srv.URL, "tok", "chat")
	err := s.Send(context.Background(), "title", "message")
	assert.Error(t, err)
}
