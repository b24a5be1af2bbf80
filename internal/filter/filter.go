package filter

import (
	"strings"

	"dockevents/internal/models"
)

const DefaultIgnoreLabel = "docker-events.ignore"

// Reasons returned by Filter.Reason.
const (
	ReasonIgnoreLabel = "ignore-label"
	ReasonIgnoreName  = "ignore-name"
	ReasonEventKind   = "event-kind"
)

// Filter decides from static configuration alone whether an event is dropped
// before rate limiting.
type Filter struct {
	label string
	names map[string]struct{}
	kinds map[string]struct{}
}

// New builds a filter. An empty kinds list allows every kind.
func New(label string, ignoreNames, kinds []string) *Filter {
	if label == "" {
		label = DefaultIgnoreLabel
	}
	return &Filter{label: label, names: toSet(ignoreNames), kinds: toSet(kinds)}
}

// Reason names the rule that drops ev, or returns "" when ev passes.
func (f *Filter) Reason(ev models.Event) string {
	if v, ok := ev.Attributes[f.label]; ok && ignoreValue(v) {
		return ReasonIgnoreLabel
	}
	if _, ok := f.names[ev.Name()]; ok {
		return ReasonIgnoreName
	}
	if len(f.kinds) > 0 {
		if _, ok := f.kinds[baseKind(ev.Kind)]; !ok {
			return ReasonEventKind
		}
	}
	return ""
}

func (f *Filter) ShouldIgnore(ev models.Event) bool {
	return f.Reason(ev) != ""
}

// baseKind strips the payload the daemon appends to some actions, so
// "health_status: unhealthy" matches an allow-list entry of "health_status".
func baseKind(kind string) string {
	base, _, _ := strings.Cut(kind, ":")
	return strings.TrimSpace(base)
}

// "no" opts a container back in; any other non-empty value opts it out.
func ignoreValue(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, "no")
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}
