// Package humanize simulates human typing behaviour: reading and typing
// durations, reply chunking, and naturally paced multi-part delivery.
package humanize

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/zapdesk/zapdesk/internal/settings"
)

// Transport is the outbound capability Deliver drives. Presence signals may
// be no-ops on platforms without a composing indicator.
type Transport interface {
	Send(ctx context.Context, chatID, content string) error
	SetComposing(ctx context.Context, chatID string) error
	ClearComposing(ctx context.Context, chatID string) error
}

// Duration clamps.
const (
	minTypingMs  = 1000
	maxTypingMs  = 10000
	minReadingMs = 500
	maxReadingMs = 5000

	readingWordsPerMinute = 225

	// Small pause between clearing the composing signal and the send.
	settleDelay = 400 * time.Millisecond

	distractionChance = 0.30
)

// Params holds the timing configuration. All fields have working defaults
// applied by NewSimulator when unset.
type Params struct {
	TypingSpeedMin       int // chars per minute
	TypingSpeedMax       int
	InterMessageDelayMin time.Duration
	InterMessageDelayMax time.Duration
	RandomDelayMin       time.Duration
	RandomDelayMax       time.Duration
	ChunkMaxLength       int
}

// ParamsFromSnapshot converts settings into simulator parameters.
func ParamsFromSnapshot(snap *settings.Snapshot) Params {
	return Params{
		TypingSpeedMin:       snap.TypingSpeedMin,
		TypingSpeedMax:       snap.TypingSpeedMax,
		InterMessageDelayMin: time.Duration(snap.InterMessageDelayMin) * time.Millisecond,
		InterMessageDelayMax: time.Duration(snap.InterMessageDelayMax) * time.Millisecond,
		RandomDelayMin:       time.Duration(snap.RandomDelayMin) * time.Millisecond,
		RandomDelayMax:       time.Duration(snap.RandomDelayMax) * time.Millisecond,
		ChunkMaxLength:       snap.ChunkMaxLength,
	}
}

// Simulator produces human-plausible timing. Safe for concurrent use.
type Simulator struct {
	params Params
	rng    *rand.Rand
	mu     sync.Mutex
	// sleepFn is swapped in tests to avoid real waiting.
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewSimulator creates a simulator with the given parameters, filling in
// defaults for anything unset.
func NewSimulator(p Params) *Simulator {
	if p.TypingSpeedMin <= 0 {
		p.TypingSpeedMin = 180
	}
	if p.TypingSpeedMax < p.TypingSpeedMin {
		p.TypingSpeedMax = p.TypingSpeedMin
	}
	if p.InterMessageDelayMin <= 0 {
		p.InterMessageDelayMin = 1200 * time.Millisecond
	}
	if p.InterMessageDelayMax < p.InterMessageDelayMin {
		p.InterMessageDelayMax = p.InterMessageDelayMin
	}
	if p.RandomDelayMin <= 0 {
		p.RandomDelayMin = 4 * time.Second
	}
	if p.RandomDelayMax < p.RandomDelayMin {
		p.RandomDelayMax = p.RandomDelayMin
	}
	if p.ChunkMaxLength <= 0 {
		p.ChunkMaxLength = 280
	}
	return &Simulator{
		params:  p,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleepFn: wait,
	}
}

// TypingDuration estimates how long a human would type text, with ±20%
// jitter, clamped to [1s, 10s].
func (s *Simulator) TypingDuration(text string) time.Duration {
	s.mu.Lock()
	speed := s.params.TypingSpeedMin
	if s.params.TypingSpeedMax > s.params.TypingSpeedMin {
		speed += s.rng.Intn(s.params.TypingSpeedMax - s.params.TypingSpeedMin + 1)
	}
	jitter := 0.8 + s.rng.Float64()*0.4
	s.mu.Unlock()

	base := float64(len(text)) / float64(speed) * 60000.0
	return clampMs(base*jitter, minTypingMs, maxTypingMs)
}

// ReadingDuration estimates how long a human would read text, with ±30%
// jitter, clamped to [500ms, 5s].
func (s *Simulator) ReadingDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	base := float64(words) / readingWordsPerMinute * 60000.0

	s.mu.Lock()
	jitter := 0.7 + s.rng.Float64()*0.6
	s.mu.Unlock()

	return clampMs(base*jitter, minReadingMs, maxReadingMs)
}

// Chunk splits text into delivery units no longer than maxLen, breaking on
// sentence boundaries only. A single sentence longer than maxLen stays whole.
// The result is never empty for non-empty input.
func Chunk(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}

	sentences := splitSentences(text)
	var chunks []string
	var cur string
	for _, sent := range sentences {
		switch {
		case cur == "":
			cur = sent
		case len(cur)+1+len(sent) <= maxLen:
			cur += " " + sent
		default:
			chunks = append(chunks, cur)
			cur = sent
		}
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

// splitSentences cuts text on ., ! and ? terminators, keeping the
// terminator with its sentence. Text without terminators is one sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			// Consume a run of terminators ("?!", "...").
			end := i + 1
			for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
				end++
			}
			if sent := strings.TrimSpace(text[start:end]); sent != "" {
				out = append(out, sent)
			}
			start = end
			i = end - 1
		}
	}
	if sent := strings.TrimSpace(text[start:]); sent != "" {
		out = append(out, sent)
	}
	return out
}

// ChunkReply splits text using the configured chunk length.
func (s *Simulator) ChunkReply(text string) []string {
	return Chunk(text, s.params.ChunkMaxLength)
}

// Deliver sends chunks through the transport with human-like pacing: a
// composing signal for the simulated typing time before each chunk, an
// inter-message delay between chunks, and an occasional longer distraction
// pause. Cancellation aborts remaining chunks; a chunk is never cut short
// mid-send.
func (s *Simulator) Deliver(ctx context.Context, t Transport, chatID string, chunks []string) error {
	for i, chunk := range chunks {
		if i > 0 {
			if err := s.sleepFn(ctx, s.between(s.params.InterMessageDelayMin, s.params.InterMessageDelayMax)); err != nil {
				return err
			}
			if s.roll() < distractionChance {
				if err := s.sleepFn(ctx, s.between(s.params.RandomDelayMin, s.params.RandomDelayMax)); err != nil {
					return err
				}
			}
		}

		_ = t.SetComposing(ctx, chatID)
		typing := s.TypingDuration(chunk)
		if err := s.sleepFn(ctx, typing); err != nil {
			_ = t.ClearComposing(ctx, chatID)
			return err
		}
		_ = t.ClearComposing(ctx, chatID)

		if err := s.sleepFn(ctx, settleDelay); err != nil {
			return err
		}
		if err := t.Send(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Pause waits for d, honouring cancellation. Used by callers to insert a
// reading pause before delivery starts.
func (s *Simulator) Pause(ctx context.Context, d time.Duration) error {
	return s.sleepFn(ctx, d)
}

func (s *Simulator) between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}

func (s *Simulator) roll() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func clampMs(ms float64, lo, hi float64) time.Duration {
	if ms < lo {
		ms = lo
	}
	if ms > hi {
		ms = hi
	}
	return time.Duration(ms) * time.Millisecond
}

// wait sleeps for d or until the context is cancelled.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
