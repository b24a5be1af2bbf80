package docker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"dockevents/internal/models"
)

// ErrMalformedEvent marks a stream item that decoded as JSON but not as an
// event. The stream stays usable after it.
var ErrMalformedEvent = errors.New("malformed docker event")

// Message is the wire form of one /events item. Status, ID and From are the
// pre-1.22 fields still sent by most daemons.
type Message struct {
	Status string `json:"status,omitempty"`
	ID     string `json:"id,omitempty"`
	From   string `json:"from,omitempty"`
	Type   string `json:"Type"`
	Action string `json:"Action"`
	Actor  struct {
		ID         string            `json:"ID"`
		Attributes map[string]string `json:"Attributes"`
	} `json:"Actor"`
	Scope    string `json:"scope,omitempty"`
	Time     int64  `json:"time"`
	TimeNano int64  `json:"timeNano"`
}

type EventStream struct {
	body io.ReadCloser
	dec  *json.Decoder
}

func NewEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{body: body, dec: json.NewDecoder(body)}
}

// Next blocks until the next event arrives. io.EOF means the daemon closed
// the stream.
func (s *EventStream) Next() (models.Event, error) {
	var msg Message
	if err := s.dec.Decode(&msg); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return models.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return models.Event{}, err
	}
	return ToEvent(msg), nil
}

func (s *EventStream) Close() error {
	return s.body.Close()
}
