// Package delivery paces a generated reply out as human-typed chunks:
// typing indicator, length-proportional delay with jitter, short pauses
// between chunks, and an occasional "distracted" detour before the first one.
package delivery

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/bobberdolle1/Puppeteer/internal/humanize"
)

// Platform is the chat-platform boundary the scheduler sends through. A
// formatted send may fail on markup; the scheduler then retries the same
// chunk once unformatted.
type Platform interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64, plain bool) error
	SendTyping(ctx context.Context, chatID int64) error
}

// AfterSendFunc runs once per successfully sent chunk, detached from the
// send path (embedding/history bookkeeping).
type AfterSendFunc func(chatID int64, chunk string)

type Scheduler struct {
	platform  Platform
	cfg       humanize.Config
	rand      *rand.Rand
	logger    *slog.Logger
	afterSend AfterSendFunc
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewScheduler(platform Platform, cfg humanize.Config, r *rand.Rand, logger *slog.Logger, afterSend AfterSendFunc) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		platform:  platform,
		cfg:       cfg,
		rand:      r,
		logger:    logger,
		afterSend: afterSend,
		sleep:     ctxSleep,
	}
}

// Deliver splits the raw reply and sends each chunk with typing pacing.
// It returns the number of chunks actually sent. A sentinel or empty reply
// sends nothing. Only the first chunk is threaded as a reply (when useReply
// is set); a failed chunk does not abort the rest. Shutdown observed between
// chunks stops before the next chunk starts.
func (s *Scheduler) Deliver(ctx context.Context, chatID int64, raw string, replyTo int64, useReply bool) (int, error) {
	chunks := humanize.SplitChunks(raw, s.cfg.ChunkDelimiter)
	if len(chunks) == 0 {
		s.logger.Debug("delivery_skipped_empty", "chat_id", chatID)
		return 0, nil
	}

	if s.rand != nil && s.rand.Float64() < s.cfg.DistractionProbability {
		if err := s.distractedDetour(ctx, chatID); err != nil {
			return 0, err
		}
	}

	sent := 0
	var lastErr error
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if i > 0 {
			if err := s.sleep(ctx, humanize.InterChunkPause(s.rand)); err != nil {
				return sent, err
			}
		}

		if err := s.platform.SendTyping(ctx, chatID); err != nil {
			s.logger.Debug("typing_action_error", "chat_id", chatID, "error", err.Error())
		}
		if err := s.sleep(ctx, humanize.TypingDuration(s.rand, s.cfg, chunk)); err != nil {
			return sent, err
		}

		chunkReplyTo := int64(0)
		if i == 0 && useReply {
			chunkReplyTo = replyTo
		}
		if err := s.sendChunk(ctx, chatID, chunk, chunkReplyTo); err != nil {
			s.logger.Warn("chunk_send_error", "chat_id", chatID, "chunk_index", i, "error", err.Error())
			lastErr = err
			continue
		}
		sent++
		if s.afterSend != nil {
			s.afterSend(chatID, chunk)
		}
	}
	if sent == 0 && lastErr != nil {
		return 0, lastErr
	}
	return sent, nil
}

// sendChunk tries a formatted send first, then falls back to plain text once.
func (s *Scheduler) sendChunk(ctx context.Context, chatID int64, chunk string, replyTo int64) error {
	err := s.platform.SendMessage(ctx, chatID, chunk, replyTo, false)
	if err == nil {
		return nil
	}
	s.logger.Debug("formatted_send_rejected", "chat_id", chatID, "error", err.Error())
	return s.platform.SendMessage(ctx, chatID, chunk, replyTo, true)
}

// distractedDetour breaks the timing signature before the first chunk: start
// typing, stop, go quiet for a while.
func (s *Scheduler) distractedDetour(ctx context.Context, chatID int64) error {
	if err := s.platform.SendTyping(ctx, chatID); err == nil {
		if err := s.sleep(ctx, 2*time.Second+time.Duration(s.rand.Int63n(int64(2*time.Second)))); err != nil {
			return err
		}
	}
	return s.sleep(ctx, 3*time.Second+time.Duration(s.rand.Int63n(int64(7*time.Second))))
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
