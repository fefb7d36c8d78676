// Package relay implements the friend-link submission relay: one route that
// validates a JSON form body and forwards it as a formatted text message to
// a Telegram bot chat or a Feishu group webhook.
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultTelegramAPIBase is the production Telegram Bot API host.
const defaultTelegramAPIBase = "https://api.telegram.org"

// Config holds relay provider credentials.
type Config struct {
	// TelegramToken is the bot token for pushType "telegram".
	TelegramToken string

	// TelegramChatID is the destination chat for pushType "telegram".
	TelegramChatID string

	// FeishuWebhook is the group webhook URL for pushType "feishu".
	FeishuWebhook string

	// TelegramAPIBase overrides the Telegram API host (for testing).
	TelegramAPIBase string

	// Client is the HTTP client for provider calls
	// (default: 10 second timeout).
	Client *http.Client
}

// ConfigFromEnv reads provider credentials from the environment.
func ConfigFromEnv() Config {
	return Config{
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		FeishuWebhook:  os.Getenv("FEISHU_WEBHOOK"),
	}
}

// Handler is the relay HTTP handler.
type Handler struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

// NewHandler creates the relay handler.
func NewHandler(cfg Config) *Handler {
	if cfg.TelegramAPIBase == "" {
		cfg.TelegramAPIBase = defaultTelegramAPIBase
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Handler{
		cfg:    cfg,
		client: client,
		logger: log.With().Str("component", "relay").Logger(),
	}
}

// submission is the friend-link form body.
type submission struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Logo     string `json:"logo"`
	Desc     string `json:"desc"`
	PushType string `json:"pushType"`
}

// ServeHTTP handles the relay route. Every response carries permissive CORS
// headers; the handler never panics through to the caller.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var sub submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if sub.Name == "" || sub.URL == "" || sub.PushType == "" {
		h.writeError(w, http.StatusBadRequest, "name, url and pushType are required")
		return
	}

	var err error
	switch sub.PushType {
	case "telegram":
		if h.cfg.TelegramToken == "" || h.cfg.TelegramChatID == "" {
			relayForwardsTotal.WithLabelValues("telegram", "config_missing").Inc()
			h.writeError(w, http.StatusInternalServerError, "telegram credentials not configured")
			return
		}
		err = h.sendTelegram(formatMessage(sub))
	case "feishu":
		if h.cfg.FeishuWebhook == "" {
			relayForwardsTotal.WithLabelValues("feishu", "config_missing").Inc()
			h.writeError(w, http.StatusInternalServerError, "feishu webhook not configured")
			return
		}
		err = h.sendFeishu(formatMessage(sub))
	default:
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported pushType %q", sub.PushType))
		return
	}

	if err != nil {
		relayForwardsTotal.WithLabelValues(sub.PushType, "upstream_failure").Inc()
		h.logger.Error().
			Err(err).
			Str("provider", sub.PushType).
			Str("name", sub.Name).
			Msg("Relay forward failed")
		h.writeError(w, http.StatusInternalServerError, "provider call failed")
		return
	}

	relayForwardsTotal.WithLabelValues(sub.PushType, "success").Inc()
	h.logger.Info().
		Str("provider", sub.PushType).
		Str("name", sub.Name).
		Str("url", sub.URL).
		Msg("Friend link forwarded")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"ok":true}`)
}

// formatMessage renders the submission as the chat message text.
// Optional fields are omitted, not sent empty.
func formatMessage(sub submission) string {
	var b strings.Builder
	b.WriteString("New friend link submission\n")
	fmt.Fprintf(&b, "Name: %s\n", sub.Name)
	fmt.Fprintf(&b, "URL: %s", sub.URL)
	if sub.Logo != "" {
		fmt.Fprintf(&b, "\nLogo: %s", sub.Logo)
	}
	if sub.Desc != "" {
		fmt.Fprintf(&b, "\nDesc: %s", sub.Desc)
	}
	return b.String()
}

// sendTelegram posts the message to the bot sendMessage endpoint.
func (h *Handler) sendTelegram(text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  h.cfg.TelegramChatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", h.cfg.TelegramAPIBase, h.cfg.TelegramToken)
	resp, err := h.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram rejected message")
	}
	return nil
}

// sendFeishu posts the message to the group webhook.
func (h *Handler) sendFeishu(text string) error {
	payload, err := json.Marshal(map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": text},
	})
	if err != nil {
		return fmt.Errorf("marshal feishu payload: %w", err)
	}

	resp, err := h.client.Post(h.cfg.FeishuWebhook, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("feishu request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("feishu returned status %d", resp.StatusCode)
	}

	var result struct {
		Code int `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Code != 0 {
		return fmt.Errorf("feishu rejected message (code %d)", result.Code)
	}
	return nil
}

// writeError sends a JSON error body with the given status.
func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}

// setCORS applies the open CORS policy the submission form relies on.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
