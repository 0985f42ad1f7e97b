package console_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/console"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnector_Send(t *testing.T) {
	var buf bytes.Buffer
	conn := console.NewConnector(&buf)

	err := conn.Send(context.Background(), "u1", domain.Message{
		Text:    "pick a fruit",
		Buttons: []string{"apple", "pear"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "pick a fruit")
	assert.Contains(t, out, "[apple]")
	assert.Contains(t, out, "[pear]")
}

func TestConnector_ContactRequest(t *testing.T) {
	var buf bytes.Buffer
	conn := console.NewConnector(&buf)

	err := conn.Send(context.Background(), "u1", domain.Message{
		Text:           "share your number",
		RequestContact: true,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "(contact requested)")
}

type recordingEngine struct {
	turns []string
}

func (r *recordingEngine) Process(ctx context.Context, userID, platform, text string, metadata map[string]string) {
	r.turns = append(r.turns, platform+":"+userID+":"+text)
}

func TestChat_LoopAndQuit(t *testing.T) {
	engine := &recordingEngine{}
	in := strings.NewReader("hello\n\nsecond line\n/quit\nignored\n")
	var out bytes.Buffer

	err := console.Chat(context.Background(), engine, "local", in, &out)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"console:local:hello",
		"console:local:second line",
	}, engine.turns)
}

func TestChat_EOF(t *testing.T) {
	engine := &recordingEngine{}
	err := console.Chat(context.Background(), engine, "local", strings.NewReader("hi"), &bytes.Buffer{})
	require.NoError(t, err)
	// A line without trailing newline is dropped with the EOF, matching
	// interactive ctrl-d behavior.
	assert.Empty(t, engine.turns)
}
