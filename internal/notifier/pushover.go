package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const pushoverURL = "https://api.pushover.net/1/messages.json"

type Pushover struct {
	Token   string
	UserKey string
	BaseURL string
	HTTP    *http.Client
}

func NewPushover(token, userKey string, timeout time.Duration) *Pushover {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pushover{
		Token:   token,
		UserKey: userKey,
		BaseURL: pushoverURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (p *Pushover) Enabled() bool {
	return p.Token != "" && p.UserKey != ""
}

func (p *Pushover) Send(ctx context.Context, title, message string) (err error) {
	defer func(start time.Time) { observe("pushover", start, err) }(time.Now())
	if !p.Enabled() {
		return fmt.Errorf("pushover not configured")
	}
	form := url.Values{}
	form.Set("token", p.Token)
	form.Set("user", p.UserKey)
	form.Set("title", title)
	form.Set("message", message)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := p.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	if res.StatusCode >= 300 {
		return fmt.Errorf("pushover status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		Status int      `json:"status"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("pushover response: %w", err)
	}
	if out.Status != 1 {
		return fmt.Errorf("pushover rejected message: %s", strings.Join(out.Errors, "; "))
	}
	return nil
}
