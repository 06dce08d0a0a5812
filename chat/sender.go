// Package chat is the outbound half of the companion's chat integration.
// The bot framework itself lives outside the engine; only sendDirect is
// consumed here.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Sender delivers a direct message to one chat user. Implementations
// enforce the per-message length cap by chunking before transport.
type Sender interface {
	SendDirect(ctx context.Context, chatUserID, message string) error
}

// BotSender posts direct messages to the bot service's REST endpoint,
// splitting long messages and spacing the chunks out.
type BotSender struct {
	baseURL  string
	token    string
	msgLimit int
	delay    time.Duration
	client   *http.Client
	logger   zerolog.Logger
}

// NewBotSender creates the REST sender.
func NewBotSender(baseURL, token string, msgLimit int, delay time.Duration, logger zerolog.Logger) *BotSender {
	if msgLimit <= 0 {
		msgLimit = 2000
	}
	return &BotSender{
		baseURL:  baseURL,
		token:    token,
		msgLimit: msgLimit,
		delay:    delay,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With().Str("component", "chat_sender").Logger(),
	}
}

type dmRequest struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// SendDirect splits the message into chunks of at most the configured limit
// and sends them in order with the configured spacing.
func (s *BotSender) SendDirect(ctx context.Context, chatUserID, message string) error {
	chunks := Split(message, s.msgLimit)
	for i, chunk := range chunks {
		if i > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.delay):
			}
		}
		if err := s.post(ctx, chatUserID, chunk); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (s *BotSender) post(ctx context.Context, chatUserID, content string) error {
	body, err := json.Marshal(dmRequest{UserID: chatUserID, Content: content})
	if err != nil {
		return fmt.Errorf("marshal dm: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/dm", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("dm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bot service returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// LogSender writes outbound messages to the log instead of a chat service.
// Used in development when no bot endpoint is configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "chat_sender").Logger()}
}

func (s *LogSender) SendDirect(ctx context.Context, chatUserID, message string) error {
	s.logger.Info().Str("user", chatUserID).Int("len", len(message)).Msg("outbound dm (log sink)")
	return nil
}
