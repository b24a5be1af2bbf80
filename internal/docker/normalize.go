package docker

import (
	"strings"
	"time"

	"dockevents/internal/models"
)

const DisplayTimeLayout = "2006-01-02 15:04:05 MST"

var pastTense = map[string]string{
	"attach":        "attached",
	"commit":        "committed",
	"copy":          "copied",
	"create":        "created",
	"destroy":       "destroyed",
	"detach":        "detached",
	"die":           "died",
	"exec_create":   "exec created",
	"exec_die":      "exec died",
	"exec_start":    "exec started",
	"export":        "exported",
	"health_status": "health status",
	"kill":          "killed",
	"oom":           "ran out of memory",
	"pause":         "paused",
	"rename":        "renamed",
	"resize":        "resized",
	"restart":       "restarted",
	"start":         "started",
	"stop":          "stopped",
	"top":           "topped",
	"unpause":       "unpaused",
	"update":        "updated",
}

// ToEvent converts a wire message, preferring the current fields and falling
// back to the legacy ones.
func ToEvent(m Message) models.Event {
	ev := models.Event{
		ID:         m.Actor.ID,
		Type:       m.Type,
		Kind:       m.Action,
		Attributes: m.Actor.Attributes,
	}
	if ev.ID == "" {
		ev.ID = m.ID
	}
	if ev.Kind == "" {
		ev.Kind = m.Status
	}
	if ev.Attributes == nil {
		ev.Attributes = map[string]string{}
	}
	switch {
	case m.TimeNano > 0:
		ev.Time = time.Unix(0, m.TimeNano)
	case m.Time > 0:
		ev.Time = time.Unix(m.Time, 0)
	}
	return ev
}

func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// PastTense renders an action for display: "die" becomes "died". Actions
// with a payload ("health_status: healthy") keep it.
func PastTense(kind string) string {
	base, rest, found := strings.Cut(kind, ":")
	base = strings.TrimSpace(base)
	word, ok := pastTense[base]
	if !ok {
		switch {
		case base == "":
			word = base
		case strings.HasSuffix(base, "e"):
			word = base + "d"
		default:
			word = base + "ed"
		}
	}
	if found {
		return word + ":" + rest
	}
	return word
}

func DisplayTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayTimeLayout)
}
