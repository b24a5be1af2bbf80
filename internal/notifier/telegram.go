package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"
)

const telegramURL = "https://api.telegram.org"

type Telegram struct {
	Token   string
	ChatID  string
	BaseURL string
	HTTP    *http.Client
}

func NewTelegram(token, chatID string, timeout time.Duration) *Telegram {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Telegram{
		Token:   token,
		ChatID:  chatID,
		BaseURL: telegramURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (t *Telegram) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

func (t *Telegram) Send(ctx context.Context, title, message string) (err error) {
	defer func(start time.Time) { observe("telegram", start, err) }(time.Now())
	if !t.Enabled() {
		return fmt.Errorf("telegram not configured")
	}
	text := html.EscapeString(message)
	if title != "" {
		text = "<b>" + html.EscapeString(title) + "</b>\n" + text
	}
	payload := map[string]any{
		"chat_id":                  t.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	b, _ := json.Marshal(payload)
	u := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := t.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	resp, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d: %s", res.StatusCode, string(resp))
	}
	return nil
}
