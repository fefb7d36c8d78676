package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func post(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/friend-link", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPreflight(t *testing.T) {
	h := NewHandler(Config{})

	req := httptest.NewRequest(http.MethodOptions, "/api/friend-link", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Preflight must carry open CORS headers")
	}
}

func TestValidation(t *testing.T) {
	h := NewHandler(Config{})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{not json`},
		{name: "missing name", body: `{"url":"https://x.example","pushType":"telegram"}`},
		{name: "missing url", body: `{"name":"Blog","pushType":"telegram"}`},
		{name: "missing pushType", body: `{"name":"Blog","url":"https://x.example"}`},
		{name: "unsupported pushType", body: `{"name":"Blog","url":"https://x.example","pushType":"discord"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("Error responses must carry CORS headers too")
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewHandler(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/friend-link", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestTelegramForward(t *testing.T) {
	var calls atomic.Int32
	var gotPath string
	var gotBody []byte

	telegram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer telegram.Close()

	h := NewHandler(Config{
		TelegramToken:   "123:abc",
		TelegramChatID:  "42",
		TelegramAPIBase: telegram.URL,
	})

	rec := post(t, h, `{"name":"Blog","url":"https://x.example","pushType":"telegram"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("body = %q, want {\"ok\":true}", rec.Body.String())
	}

	// Exactly one POST to the sendMessage endpoint with the formatted text.
	if calls.Load() != 1 {
		t.Errorf("Telegram calls = %d, want 1", calls.Load())
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q, want /bot123:abc/sendMessage", gotPath)
	}

	var payload struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("Unmarshal telegram payload: %v", err)
	}
	if payload.ChatID != "42" {
		t.Errorf("chat_id = %q, want 42", payload.ChatID)
	}
	if !strings.Contains(payload.Text, "Blog") || !strings.Contains(payload.Text, "https://x.example") {
		t.Errorf("Message text missing submission fields: %q", payload.Text)
	}
}

func TestTelegramRejectedMessage(t *testing.T) {
	telegram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false}`))
	}))
	defer telegram.Close()

	h := NewHandler(Config{
		TelegramToken:   "123:abc",
		TelegramChatID:  "42",
		TelegramAPIBase: telegram.URL,
	})

	rec := post(t, h, `{"name":"Blog","url":"https://x.example","pushType":"telegram"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestTelegramConfigMissing(t *testing.T) {
	h := NewHandler(Config{})

	rec := post(t, h, `{"name":"Blog","url":"https://x.example","pushType":"telegram"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not configured") {
		t.Errorf("body = %q, want configuration-missing message", rec.Body.String())
	}
}

func TestFeishuConfigMissing(t *testing.T) {
	// A provider server that must never be reached.
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer upstream.Close()

	h := NewHandler(Config{TelegramAPIBase: upstream.URL}) // FeishuWebhook unset

	rec := post(t, h, `{"name":"Blog","url":"https://x.example","pushType":"feishu"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not configured") {
		t.Errorf("body = %q, want configuration-missing message", rec.Body.String())
	}
	if calls.Load() != 0 {
		t.Errorf("Outbound requests = %d, want 0", calls.Load())
	}
}

func TestFeishuForward(t *testing.T) {
	var calls atomic.Int32
	var gotBody []byte

	feishu := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"code":0}`))
	}))
	defer feishu.Close()

	h := NewHandler(Config{FeishuWebhook: feishu.URL})

	rec := post(t, h, `{"name":"Blog","url":"https://x.example","logo":"https://x.example/logo.png","desc":"A blog","pushType":"feishu"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if calls.Load() != 1 {
		t.Errorf("Feishu calls = %d, want 1", calls.Load())
	}

	var payload struct {
		MsgType string `json:"msg_type"`
		Content struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("Unmarshal feishu payload: %v", err)
	}
	if payload.MsgType != "text" {
		t.Errorf("msg_type = %q, want text", payload.MsgType)
	}
	for _, want := range []string{"Blog", "https://x.example", "logo.png", "A blog"} {
		if !strings.Contains(payload.Content.Text, want) {
			t.Errorf("Message text missing %q: %q", want, payload.Content.Text)
		}
	}
}

func TestFeishuRejectedCode(t *testing.T) {
	feishu := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":19001,"msg":"param invalid"}`))
	}))
	defer feishu.Close()

	h := NewHandler(Config{FeishuWebhook: feishu.URL})

	rec := post(t, h, `{"name":"Blog","url":"https://x.example","pushType":"feishu"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestFormatMessage_OmitsEmptyFields(t *testing.T) {
	msg := formatMessage(submission{Name: "Blog", URL: "https://x.example"})
	if strings.Contains(msg, "Logo") || strings.Contains(msg, "Desc") {
		t.Errorf("Empty optional fields must be omitted: %q", msg)
	}
}
