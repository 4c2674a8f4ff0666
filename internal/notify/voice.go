package notify

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "chime/pkg/logx"
)

// VoiceConfig controls local text-to-speech playback.
type VoiceConfig struct {
	Enabled bool
	Command string        // TTS binary, default "espeak"
	Timeout time.Duration // per-playback cap, default 15s
}

// Voice speaks the notification through a local TTS command. Playback is
// best-effort: a missing binary or a broken audio device is logged and
// swallowed, and a burst of fires is throttled instead of queueing speech.
type Voice struct {
	cmd     string
	timeout time.Duration
	limiter *rate.Limiter
	log     logx.Logger
}

func NewVoice(cfg VoiceConfig, log logx.Logger) *Voice {
	if log.IsZero() {
		log = logx.Nop()
	}
	cmd := strings.TrimSpace(cfg.Command)
	if cmd == "" {
		cmd = "espeak"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Voice{
		cmd:     cmd,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
		log:     log,
	}
}

func (v *Voice) Name() string { return "voice" }

func (v *Voice) Announce(ctx context.Context, title, body string) error {
	if !v.limiter.Allow() {
		v.log.Debug("voice throttled", logx.String("title", title))
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	text := "Reminder: " + title + ". " + body
	return exec.CommandContext(cctx, v.cmd, text).Run()
}
