// Package botruntime runs the Telegram side of the bot: long polling,
// per-chat dispatch, media preprocessing, and background memory retention.
package botruntime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bobberdolle1/Puppeteer/internal/media"
	"github.com/bobberdolle1/Puppeteer/internal/pipeline"
	"github.com/bobberdolle1/Puppeteer/internal/retryutil"
	"github.com/bobberdolle1/Puppeteer/internal/telegram"
	"github.com/bobberdolle1/Puppeteer/memory"
)

type Options struct {
	PollTimeout       time.Duration
	OwnerIDs          []int64
	IgnoreOlderThan   time.Duration
	MaxMediaBytes     int64
	RetentionInterval time.Duration
	WorkerQueueSize   int
}

func DefaultOptions() Options {
	return Options{
		PollTimeout:       30 * time.Second,
		IgnoreOlderThan:   5 * time.Minute,
		MaxMediaBytes:     20 * 1024 * 1024,
		RetentionInterval: time.Hour,
		WorkerQueueSize:   16,
	}
}

type Runtime struct {
	opts        Options
	logger      *slog.Logger
	api         *telegram.Client
	pipe        *pipeline.Pipeline
	transcriber *media.Transcriber
	describer   *media.Describer
	retention   *memory.Retention
	store       *memory.Store
	botID       int64

	mu      sync.Mutex
	workers map[int64]chan telegram.Update
	wg      sync.WaitGroup
}

func New(opts Options, logger *slog.Logger, api *telegram.Client, pipe *pipeline.Pipeline, transcriber *media.Transcriber, describer *media.Describer, retention *memory.Retention, store *memory.Store) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.WorkerQueueSize <= 0 {
		opts.WorkerQueueSize = 16
	}
	return &Runtime{
		opts:        opts,
		logger:      logger,
		api:         api,
		pipe:        pipe,
		transcriber: transcriber,
		describer:   describer,
		retention:   retention,
		store:       store,
		workers:     make(map[int64]chan telegram.Update),
	}
}

// Platform adapts the Telegram client to the delivery scheduler.
type Platform struct {
	API *telegram.Client
}

func (p *Platform) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64, plain bool) error {
	if plain {
		return p.API.SendPlain(ctx, chatID, text, replyTo)
	}
	return p.API.SendMarkdown(ctx, chatID, text, replyTo)
}

func (p *Platform) SendTyping(ctx context.Context, chatID int64) error {
	return p.API.SendTyping(ctx, chatID)
}

// Notifier delivers operational alerts to the configured owners.
type Notifier struct {
	API      *telegram.Client
	OwnerIDs []int64
	Logger   *slog.Logger
}

func (n *Notifier) Notify(ctx context.Context, text string) {
	for _, id := range n.OwnerIDs {
		if err := n.API.SendPlain(ctx, id, text, 0); err != nil {
			if n.Logger != nil {
				n.Logger.Warn("owner_notify_error", "owner_id", id, "error", err.Error())
			}
			retryutil.AsyncRetry(n.Logger, "owner_notify", 0, 0, func(rctx context.Context) error {
				return n.API.SendPlain(rctx, id, text, 0)
			})
		}
	}
}

// Run blocks until ctx is canceled. It resolves the bot identity, starts the
// retention ticker, and polls for updates, dispatching each to its chat
// worker so chats never block each other.
func (r *Runtime) Run(ctx context.Context) error {
	me, err := r.resolveIdentity(ctx)
	if err != nil {
		return err
	}
	if me == nil {
		return nil
	}
	r.botID = me.ID
	r.logger.Info("bot_started", "bot_id", me.ID, "username", me.Username)
	r.pipe.SetIdentity(me.ID, me.Username, telegram.DisplayName(me))
	r.notifyOwners(ctx, fmt.Sprintf("bot @%s is up", me.Username))

	if r.retention != nil && r.opts.RetentionInterval > 0 {
		r.wg.Add(1)
		go r.retentionLoop(ctx)
	}

	startedAt := time.Now()
	var offset int64
	for {
		updates, nextOffset, err := r.api.GetUpdates(ctx, offset, r.opts.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				r.logger.Info("bot_stop", "reason", "context_canceled")
				r.shutdown()
				return nil
			}
			if telegram.IsPollTimeout(err) {
				r.logger.Debug("get_updates_timeout", "error", err.Error())
			} else {
				r.logger.Warn("get_updates_error", "error", err.Error())
			}
			time.Sleep(1 * time.Second)
			continue
		}
		offset = nextOffset

		for _, u := range updates {
			msg := u.Message
			if msg == nil || msg.Chat == nil {
				continue
			}
			if msg.From != nil && msg.From.IsBot {
				continue
			}
			if r.tooOld(msg, startedAt) {
				r.logger.Debug("update_skipped_stale", "chat_id", msg.Chat.ID, "message_id", msg.MessageID)
				continue
			}
			r.dispatch(ctx, u)
		}
	}
}

func (r *Runtime) resolveIdentity(ctx context.Context) (*telegram.User, error) {
	for {
		me, err := r.api.GetMe(ctx)
		if err == nil {
			return me, nil
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			r.logger.Info("bot_stop", "reason", "context_canceled")
			return nil, nil
		}
		r.logger.Warn("get_me_error", "error", err.Error())
		select {
		case <-ctx.Done():
			r.logger.Info("bot_stop", "reason", "context_canceled")
			return nil, nil
		case <-time.After(2 * time.Second):
		}
	}
}

// tooOld guards against replaying the backlog Telegram holds across
// restarts.
func (r *Runtime) tooOld(msg *telegram.Message, startedAt time.Time) bool {
	if r.opts.IgnoreOlderThan <= 0 || msg.Date == 0 {
		return false
	}
	sentAt := time.Unix(msg.Date, 0)
	return sentAt.Before(startedAt.Add(-r.opts.IgnoreOlderThan))
}

// dispatch routes the update to a per-chat worker, creating one lazily.
// Workers serialize handling within a chat; a full queue drops the update.
func (r *Runtime) dispatch(ctx context.Context, u telegram.Update) {
	chatID := u.Message.Chat.ID

	r.mu.Lock()
	ch, ok := r.workers[chatID]
	if !ok {
		ch = make(chan telegram.Update, r.opts.WorkerQueueSize)
		r.workers[chatID] = ch
		r.wg.Add(1)
		go r.chatWorker(ctx, chatID, ch)
	}
	r.mu.Unlock()

	select {
	case ch <- u:
	default:
		r.logger.Warn("chat_queue_full", "chat_id", chatID)
	}
}

func (r *Runtime) chatWorker(ctx context.Context, chatID int64, ch <-chan telegram.Update) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-ch:
			r.handleUpdate(ctx, u)
		}
	}
}

func (r *Runtime) handleUpdate(ctx context.Context, u telegram.Update) {
	msg := u.Message
	text := r.effectiveText(ctx, msg)
	if text == "" {
		return
	}

	in := pipeline.Inbound{
		ChatID:       msg.Chat.ID,
		ThreadID:     msg.ThreadID,
		MessageID:    msg.MessageID,
		Text:         text,
		IsPrivate:    msg.Chat.IsPrivate(),
		IsReplyToBot: isReplyToSelf(msg, r.botID),
		HasMedia:     msg.Voice != nil || len(msg.Photo) > 0,
	}
	if msg.From != nil {
		in.UserID = msg.From.ID
		in.UserName = telegram.DisplayName(msg.From)
	}
	r.pipe.Handle(ctx, in)
}

// isReplyToSelf reports whether msg replies to a message this account sent.
// Replies to other bots do not count.
func isReplyToSelf(msg *telegram.Message, botID int64) bool {
	return msg.ReplyTo != nil && msg.ReplyTo.From != nil && msg.ReplyTo.From.ID == botID
}

// effectiveText flattens the message into plain text: voice notes are
// transcribed, photos described, captions folded in.
func (r *Runtime) effectiveText(ctx context.Context, msg *telegram.Message) string {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}

	mediaText := ""
	switch {
	case msg.Voice != nil && r.transcriber != nil:
		transcript, err := r.processFile(ctx, msg.Chat.ID, msg.Voice.FileID, r.transcribeBytes)
		if err != nil {
			r.logger.Warn("voice_process_error", "chat_id", msg.Chat.ID, "error", err.Error())
		} else if transcript != "" {
			mediaText = "[Voice message]: " + transcript
		}
	case len(msg.Photo) > 0 && r.describer != nil:
		// The largest size is last.
		photo := msg.Photo[len(msg.Photo)-1]
		desc, err := r.processFile(ctx, msg.Chat.ID, photo.FileID, r.describeBytes)
		if err != nil {
			r.logger.Warn("photo_process_error", "chat_id", msg.Chat.ID, "error", err.Error())
		} else if desc != "" {
			mediaText = "[Image]: " + desc
		}
	}

	switch {
	case mediaText == "":
		return text
	case text == "":
		return mediaText
	default:
		return fmt.Sprintf("%s\n%s", text, mediaText)
	}
}

func (r *Runtime) processFile(ctx context.Context, chatID int64, fileID string, process func(ctx context.Context, data []byte) (string, error)) (string, error) {
	_ = r.api.SendTyping(ctx, chatID)
	f, err := r.api.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	data, err := r.api.DownloadFile(ctx, f.FilePath, r.opts.MaxMediaBytes)
	if err != nil {
		return "", err
	}
	return process(ctx, data)
}

func (r *Runtime) transcribeBytes(ctx context.Context, data []byte) (string, error) {
	return r.transcriber.Transcribe(ctx, data, "voice.ogg")
}

func (r *Runtime) describeBytes(ctx context.Context, data []byte) (string, error) {
	return r.describer.Describe(ctx, data)
}

func (r *Runtime) retentionLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.RetentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runRetention(ctx)
		}
	}
}

func (r *Runtime) runRetention(ctx context.Context) {
	chatIDs, err := r.store.ChatIDs(ctx)
	if err != nil {
		r.logger.Warn("retention_list_error", "error", err.Error())
		return
	}
	for _, chatID := range chatIDs {
		if err := r.retention.Run(ctx, chatID); err != nil {
			r.logger.Warn("retention_error", "chat_id", chatID, "error", err.Error())
		}
	}
	r.logger.Debug("retention_pass_done", "chats", len(chatIDs))
}

func (r *Runtime) notifyOwners(ctx context.Context, text string) {
	n := &Notifier{API: r.api, OwnerIDs: r.opts.OwnerIDs, Logger: r.logger}
	n.Notify(ctx, text)
}

func (r *Runtime) shutdown() {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		r.logger.Warn("shutdown_timeout")
	}
}
