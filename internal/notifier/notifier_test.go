package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockevents/internal/metrics"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

func TestPushoverSendsForm(t *testing.T) {
	var got url.Values
	p := NewPushover("app-token", "user-key", time.Second)
	p.HTTP = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "api.pushover.net", req.URL.Host)
		assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
		b, _ := io.ReadAll(req.Body)
		got, _ = url.ParseQuery(string(b))
		return respond(http.StatusOK, `{"status":1,"request":"abc"}`), nil
	})}
	before := testutil.ToFloat64(metrics.Notifications.WithLabelValues("pushover", "sent"))

	err := p.Send(context.Background(), "Docker Event", "The container db (postgres) died at now")

	require.NoError(t, err)
	assert.Equal(t, "app-token", got.Get("token"))
	assert.Equal(t, "user-key", got.Get("user"))
	assert.Equal(t, "Docker Event", got.Get("title"))
	assert.Equal(t, "The container db (postgres) died at now", got.Get("message"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Notifications.WithLabelValues("pushover", "sent")))
}

func TestPushoverReportsRejection(t *testing.T) {
	p := NewPushover("bad", "user", time.Second)
	p.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusBadRequest, `{"token":"invalid","errors":["application token is invalid"],"status":0}`), nil
	})}

	err := p.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application token is invalid")
}

func TestPushoverStatusZeroIsError(t *testing.T) {
	p := NewPushover("tok", "user", time.Second)
	p.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusOK, `{"status":0,"errors":["user key is invalid"]}`), nil
	})}

	err := p.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user key is invalid")
}

func TestPushoverRequiresCredentials(t *testing.T) {
	assert.Error(t, NewPushover("", "user", 0).Send(context.Background(), "t", "m"))
}

func TestTelegramSendsTitleAndMessage(t *testing.T) {
	var payload map[string]any
	n := NewTelegram("bot-token", "42", time.Second)
	n.HTTP = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/botbot-token/sendMessage", req.URL.Path)
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
		return respond(http.StatusOK, `{"ok":true}`), nil
	})}

	require.NoError(t, n.Send(context.Background(), "Docker Event", "hello"))
	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "<b>Docker Event</b>\nhello", payload["text"])
	assert.Equal(t, "HTML", payload["parse_mode"])
}

func TestTelegramEscapesMarkup(t *testing.T) {
	var payload map[string]any
	n := NewTelegram("bot-token", "42", time.Second)
	n.HTTP = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
		return respond(http.StatusOK, `{"ok":true}`), nil
	})}

	require.NoError(t, n.Send(context.Background(), "", "The container <web> (a&b) died"))
	assert.Equal(t, "The container &lt;web&gt; (a&amp;b) died", payload["text"])
}

func TestTelegramErrorStatus(t *testing.T) {
	n := NewTelegram("bot-token", "42", time.Second)
	n.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusUnauthorized, `{"ok":false}`), nil
	})}
	assert.Error(t, n.Send(context.Background(), "", "hello"))
}

type countingNotifier struct{ sent int }

func (c *countingNotifier) Send(context.Context, string, string) error {
	c.sent++
	return nil
}

func TestThrottleDisabledReturnsSameNotifier(t *testing.T) {
	c := &countingNotifier{}
	assert.Same(t, c, Throttle(c, 0, 5).(*countingNotifier))
}

func TestThrottleHonoursContext(t *testing.T) {
	c := &countingNotifier{}
	n := Throttle(c, 1, 1)

	require.NoError(t, n.Send(context.Background(), "t", "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := n.Send(ctx, "t", "second")
	require.Error(t, err)
	assert.Equal(t, 1, c.sent)
}
