package models

import "time"

// Event is a single lifecycle event decoded from the runtime stream.
type Event struct {
	ID         string
	Type       string
	Kind       string
	Attributes map[string]string
	Time       time.Time
}

func (e Event) Name() string  { return e.Attributes["name"] }
func (e Event) Image() string { return e.Attributes["image"] }

type Counter struct {
	ID         int64     `json:"id,omitempty"`
	Key        string    `json:"key"`
	Count      int64     `json:"count"`
	LastUpdate time.Time `json:"last_update"`
}
