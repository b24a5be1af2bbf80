package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dockevents/internal/models"
)

func event(kind, name string, extra map[string]string) models.Event {
	attrs := map[string]string{"name": name, "image": "nginx:latest"}
	for k, v := range extra {
		attrs[k] = v
	}
	return models.Event{ID: "0123456789abcdef", Type: "container", Kind: kind, Attributes: attrs}
}

func TestReason(t *testing.T) {
	f := New("", []string{"watchtower", " traefik "}, []string{"start", "die"})

	cases := []struct {
		name string
		ev   models.Event
		want string
	}{
		{"plain", event("start", "web", nil), ""},
		{"label yes", event("start", "web", map[string]string{DefaultIgnoreLabel: "yes"}), ReasonIgnoreLabel},
		{"label true", event("die", "web", map[string]string{DefaultIgnoreLabel: "true"}), ReasonIgnoreLabel},
		{"label no", event("start", "web", map[string]string{DefaultIgnoreLabel: "no"}), ""},
		{"label NO", event("start", "web", map[string]string{DefaultIgnoreLabel: "NO"}), ""},
		{"label empty", event("start", "web", map[string]string{DefaultIgnoreLabel: ""}), ""},
		{"ignored name", event("start", "watchtower", nil), ReasonIgnoreName},
		{"trimmed name", event("start", "traefik", nil), ReasonIgnoreName},
		{"label beats name", event("start", "watchtower", map[string]string{DefaultIgnoreLabel: "1"}), ReasonIgnoreLabel},
		{"kind not allowed", event("pause", "web", nil), ReasonEventKind},
		{"kind with payload not allowed", event("health_status: healthy", "web", nil), ReasonEventKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.Reason(tc.ev))
			assert.Equal(t, tc.want != "", f.ShouldIgnore(tc.ev))
		})
	}
}

func TestCustomLabelAndOpenAllowList(t *testing.T) {
	f := New("com.example.mute", nil, nil)

	assert.True(t, f.ShouldIgnore(event("exec_create", "web", map[string]string{"com.example.mute": "yes"})))
	assert.False(t, f.ShouldIgnore(event("exec_create", "web", map[string]string{DefaultIgnoreLabel: "yes"})))
	assert.False(t, f.ShouldIgnore(event("anything", "web", nil)))
}

func TestAllowListMatchesActionWithPayload(t *testing.T) {
	f := New("", nil, []string{"health_status", "exec_start", "start"})

	assert.Empty(t, f.Reason(event("health_status: healthy", "web", nil)))
	assert.Empty(t, f.Reason(event("health_status: unhealthy", "web", nil)))
	assert.Empty(t, f.Reason(event("exec_start: sh -c date", "web", nil)))
	assert.Equal(t, ReasonEventKind, f.Reason(event("exec_create: sh -c date", "web", nil)))
}
