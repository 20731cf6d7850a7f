// Package speech reads messages aloud, one utterance at a time.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"blockstream/circuitbreaker"
	"blockstream/logger"
	"blockstream/plaintext"
	"blockstream/types"
)

// ErrNothingToSay is returned when a message has no speakable text
var ErrNothingToSay = errors.New("message has no speakable text")

// ErrUnavailable is returned while the speech backend's circuit is open
var ErrUnavailable = errors.New("speech backend is unavailable")

// Speaker produces audio for text. Speak blocks until playback ends or ctx
// is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// CommandSpeaker runs an external TTS program (edge-playback, say, espeak)
// with the text appended as its last argument.
type CommandSpeaker struct {
	Command []string
}

// Speak implements Speaker
func (c CommandSpeaker) Speak(ctx context.Context, text string) error {
	if len(c.Command) == 0 {
		return errors.New("speech command is not configured")
	}
	args := append(append([]string(nil), c.Command[1:]...), text)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("speech command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SpeakableText returns the rendered text of the blocks a listener should
// hear. Code, images, dividers and actions are skipped.
func SpeakableText(blocks []types.MessageBlock) string {
	var parts []string
	for _, b := range blocks {
		switch b.Kind() {
		case types.KindCode, types.KindImage, types.KindDivider, types.KindAction:
			continue
		}
		if text := plaintext.Block(b); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

type utterance struct {
	messageID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Coordinator owns the single active utterance of the process. Starting a
// new one stops the previous.
type Coordinator struct {
	mu      sync.Mutex
	speaker Speaker
	active  *utterance
	log     logger.Logger

	health  *circuitbreaker.HealthManager
	backend string
}

// NewCoordinator creates a coordinator. A nil logger discards output.
func NewCoordinator(speaker Speaker, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{speaker: speaker, log: log}
}

// SetHealthManager guards the speaker with a circuit breaker: after repeated
// failures Start returns ErrUnavailable until the backoff elapses.
func (c *Coordinator) SetHealthManager(health *circuitbreaker.HealthManager, backend string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.health = health
	c.backend = backend
}

// Start speaks the message, stopping whatever was playing. It returns once
// playback has begun; playback ends on its own, on Stop, or when ctx ends.
func (c *Coordinator) Start(ctx context.Context, messageID string, blocks []types.MessageBlock) error {
	text := SpeakableText(blocks)
	if text == "" {
		return ErrNothingToSay
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	health, backend := c.health, c.backend
	if health != nil && !health.IsHealthy(backend) {
		return ErrUnavailable
	}
	c.stopLocked()

	playCtx, cancel := context.WithCancel(ctx)
	u := &utterance{messageID: messageID, cancel: cancel, done: make(chan struct{})}
	c.active = u

	c.log.Info(logger.ComponentSpeech, logger.CategorySession, messageID, "Speech started", map[string]interface{}{
		"length": len(text),
	})

	go func() {
		err := c.speaker.Speak(playCtx, text)
		stopped := playCtx.Err() != nil
		cancel()
		close(u.done)

		switch {
		case err == nil:
			if health != nil {
				health.RecordSuccess(backend)
			}
		case !stopped:
			c.log.Warn(logger.ComponentSpeech, logger.CategoryError, messageID, "Speech failed", map[string]interface{}{
				"error": err.Error(),
			})
			if health != nil {
				health.RecordFailure(backend)
			}
		}

		c.mu.Lock()
		if c.active == u {
			c.active = nil
		}
		c.mu.Unlock()
	}()
	return nil
}

// Stop ends the active utterance, if any, and waits for it to finish
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Coordinator) stopLocked() {
	if c.active == nil {
		return
	}
	u := c.active
	c.active = nil
	u.cancel()
	<-u.done
	c.log.Info(logger.ComponentSpeech, logger.CategorySession, u.messageID, "Speech stopped", nil)
}

// Active returns the message being spoken
func (c *Coordinator) Active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return "", false
	}
	return c.active.messageID, true
}
