// Package alert supplies the minimal notification sink implied by §7
// ("on full cycle completion a summary message is emitted and (if
// configured) pushed to an alert sink") but excluded as a concrete
// Telegram/bot integration by the distilled spec's Non-goals. A stdout
// sink is wired by default; a webhook sink is available for operators
// who want delivery to Slack/Telegram-via-webhook without building a
// bot client here.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dasein108/cex-arbitrage-sub002/internal/xlog"
)

// Level is the severity of an alert message.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Sink delivers a notification somewhere an operator will see it.
type Sink interface {
	Notify(ctx context.Context, level Level, message string) error
}

// StdoutSink logs through the engine's own logger; the default sink
// when no external alert collaborator is configured.
type StdoutSink struct {
	Log xlog.Logger
}

func NewStdoutSink(log xlog.Logger) *StdoutSink { return &StdoutSink{Log: log} }

func (s *StdoutSink) Notify(_ context.Context, level Level, message string) error {
	switch level {
	case LevelWarn:
		s.Log.Warn("[ALERT] %s", message)
	case LevelError:
		s.Log.Error("[ALERT] %s", message)
	default:
		s.Log.Info("[ALERT] %s", message)
	}
	return nil
}

// WebhookSink POSTs a JSON payload to a configured URL, using a plain
// net/http.Client-with-timeout idiom.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{URL: url, Client: &http.Client{Timeout: 5 * time.Second}}
}

type webhookPayload struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (s *WebhookSink) Notify(ctx context.Context, level Level, message string) error {
	body, err := json.Marshal(webhookPayload{
		Level:     level.String(),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert: webhook %s returned %d", s.URL, resp.StatusCode)
	}
	return nil
}
