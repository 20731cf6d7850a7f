package speech

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockstream/circuitbreaker"
	"blockstream/logger"
	"blockstream/types"
)

// blockingSpeaker plays until cancelled or released
type blockingSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	release chan struct{}
	started chan string
}

func newBlockingSpeaker() *blockingSpeaker {
	return &blockingSpeaker{release: make(chan struct{}), started: make(chan string, 8)}
}

func (s *blockingSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	s.started <- text

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.release:
		return nil
	}
}

var message = []types.MessageBlock{
	&types.HeadingBlock{Level: 1, Content: "Intro"},
	&types.CodeBlock{Language: "go", Content: "x := 1"},
	&types.TextBlock{Content: "Read **this**"},
	&types.ImageBlock{Src: "a.png", Alt: "chart"},
	&types.DividerBlock{},
	&types.ActionBlock{Data: json.RawMessage(`{}`)},
	&types.ListBlock{Items: []string{"one", "two"}},
}

func TestSpeakableText(t *testing.T) {
	assert.Equal(t, "Intro\nRead this\none\ntwo", SpeakableText(message))
	assert.Equal(t, "", SpeakableText([]types.MessageBlock{&types.CodeBlock{Content: "x"}}))
}

func TestCoordinatorSingleActiveUtterance(t *testing.T) {
	speaker := newBlockingSpeaker()
	c := NewCoordinator(speaker, logger.Nop())

	require.NoError(t, c.Start(context.Background(), "msg-1", message))
	<-speaker.started
	id, ok := c.Active()
	assert.True(t, ok)
	assert.Equal(t, "msg-1", id)

	require.NoError(t, c.Start(context.Background(), "msg-2", []types.MessageBlock{&types.TextBlock{Content: "second"}}))
	<-speaker.started
	id, ok = c.Active()
	assert.True(t, ok)
	assert.Equal(t, "msg-2", id)

	c.Stop()
	_, ok = c.Active()
	assert.False(t, ok)

	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	assert.Equal(t, []string{"Intro\nRead this\none\ntwo", "second"}, speaker.spoken)
}

func TestCoordinatorClearsFinishedUtterance(t *testing.T) {
	speaker := newBlockingSpeaker()
	c := NewCoordinator(speaker, nil)

	require.NoError(t, c.Start(context.Background(), "msg-1", message))
	<-speaker.started
	close(speaker.release)

	assert.Eventually(t, func() bool {
		_, ok := c.Active()
		return !ok
	}, time.Second, 5*time.Millisecond)

	// Stop with nothing active is a no-op
	c.Stop()
}

func TestCoordinatorParentCancellation(t *testing.T) {
	speaker := newBlockingSpeaker()
	c := NewCoordinator(speaker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx, "msg-1", message))
	<-speaker.started
	cancel()

	assert.Eventually(t, func() bool {
		_, ok := c.Active()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestCoordinatorNothingToSay(t *testing.T) {
	c := NewCoordinator(newBlockingSpeaker(), nil)
	err := c.Start(context.Background(), "msg", []types.MessageBlock{&types.DividerBlock{}})
	assert.ErrorIs(t, err, ErrNothingToSay)
	_, ok := c.Active()
	assert.False(t, ok)
}

func TestCommandSpeaker(t *testing.T) {
	err := CommandSpeaker{}.Speak(context.Background(), "hi")
	assert.Error(t, err)

	if _, lookErr := exec.LookPath("true"); lookErr != nil {
		t.Skip("true is not available")
	}
	assert.NoError(t, CommandSpeaker{Command: []string{"true"}}.Speak(context.Background(), "hi"))

	err = CommandSpeaker{Command: []string{"false"}}.Speak(context.Background(), "hi")
	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr))
}

type failingSpeaker struct{}

func (failingSpeaker) Speak(ctx context.Context, text string) error {
	return errors.New("no audio device")
}

func TestCoordinatorOpensCircuitOnFailures(t *testing.T) {
	health := circuitbreaker.NewHealthManager(circuitbreaker.Config{
		FailureThreshold:   2,
		BackoffDuration:    time.Minute,
		MaxBackoffDuration: time.Minute,
	}, nil)
	c := NewCoordinator(failingSpeaker{}, nil)
	c.SetHealthManager(health, "tts")

	for i := 1; i <= 2; i++ {
		require.NoError(t, c.Start(context.Background(), "msg", message))
		want := i
		assert.Eventually(t, func() bool {
			h, _ := health.Health("tts")
			return h.FailureCount == want
		}, time.Second, 5*time.Millisecond)
	}

	err := c.Start(context.Background(), "msg", message)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCoordinatorStopIsNotAFailure(t *testing.T) {
	health := circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig(), nil)
	speaker := newBlockingSpeaker()
	c := NewCoordinator(speaker, nil)
	c.SetHealthManager(health, "tts")

	require.NoError(t, c.Start(context.Background(), "msg", message))
	<-speaker.started
	c.Stop()

	_, recorded := health.Health("tts")
	assert.False(t, recorded)
}
