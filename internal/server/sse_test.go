package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/soul-spirits/internal/orchestrator"
)

func TestEventStream(t *testing.T) {
	w := httptest.NewRecorder()
	events, err := newEventStream(w)
	require.NoError(t, err)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, events.transition(orchestrator.Transition{
		From:    orchestrator.GeneratingRecipe{},
		To:      orchestrator.Error{Message: "no recipe generated"},
		At:      at,
		Attempt: orchestrator.AttemptRedo,
	}))
	require.NoError(t, events.fail(ErrAtCapacity, nil))

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	require.Len(t, frames, 2)

	assert.True(t, strings.HasPrefix(frames[0], "id: 1\nevent: state\ndata: "))
	assert.Contains(t, frames[0], `"state":"error","from":"generating_recipe","attempt":"redo","message":"no recipe generated"`)
	assert.True(t, strings.HasPrefix(frames[1], "id: 2\nevent: error\n"))
	assert.Contains(t, frames[1], `"code":"AtCapacity"`)
}
