package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/soul-spirits/internal/orchestrator"
)

// stateEvent is the payload of a "state" event.
type stateEvent struct {
	State   string    `json:"state"`
	From    string    `json:"from"`
	Attempt string    `json:"attempt"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// eventStream writes Server-Sent Events for one generation. Events carry
// increasing ids so a client can tell whether it missed one.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// newEventStream commits the response as text/event-stream
func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventStream{w: w, flusher: flusher}, nil
}

func (e *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	e.seq++
	if _, err := fmt.Fprintf(e.w, "id: %d\nevent: %s\ndata: %s\n\n", e.seq, event, payload); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func (e *eventStream) transition(t orchestrator.Transition) error {
	ev := stateEvent{
		State:   t.To.Name(),
		From:    t.From.Name(),
		Attempt: string(t.Attempt),
		At:      t.At,
	}
	if failed, ok := t.To.(orchestrator.Error); ok {
		ev.Message = failed.Message
	}
	return e.send("state", ev)
}

func (e *eventStream) fail(err error, challenge *ChallengeView) error {
	return e.send("error", errorBody{Error: err.Error(), Code: ErrorCode(err), Captcha: challenge})
}

func (e *eventStream) complete(view SessionView) error {
	return e.send("complete", view)
}
