// Package pipeline wires the inbound message flow end to end: persist,
// debounce, trigger, rate gates, memory retrieval, prompt assembly,
// inference, and humanized delivery.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/bobberdolle1/Puppeteer/db"
	"github.com/bobberdolle1/Puppeteer/db/models"
	"github.com/bobberdolle1/Puppeteer/internal/debounce"
	"github.com/bobberdolle1/Puppeteer/internal/delivery"
	"github.com/bobberdolle1/Puppeteer/internal/history"
	"github.com/bobberdolle1/Puppeteer/internal/humanize"
	"github.com/bobberdolle1/Puppeteer/internal/inference"
	"github.com/bobberdolle1/Puppeteer/internal/prompt"
	"github.com/bobberdolle1/Puppeteer/internal/ratecontrol"
	"github.com/bobberdolle1/Puppeteer/internal/trigger"
	"github.com/bobberdolle1/Puppeteer/llm"
	"github.com/bobberdolle1/Puppeteer/memory"
)

// Notifier pushes operational alerts to the bot owners.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Inbound is one normalized platform message entering the pipeline. Media
// has already been flattened into Text by preprocessing.
type Inbound struct {
	ChatID       int64
	ThreadID     int64
	MessageID    int64
	UserID       int64
	UserName     string
	Text         string
	IsPrivate    bool
	IsReplyToBot bool
	HasMedia     bool
}

type Config struct {
	BotName     string
	BotUsername string

	ChatModel   string
	EmbedModel  string
	Temperature float64
	MaxTokens   int

	PersonaPrompt string

	RandomReplyProbability float64
	RagDecayRate           float64
	RagScanLimit           int
	RagTopN                int

	GroupReplyProbability float64
	FallbackMessage       string

	Humanize humanize.Config
}

type Pipeline struct {
	cfg       Config
	logger    *slog.Logger
	gdb       *gorm.DB
	queue     *inference.Queue
	store     *memory.Store
	turns     *history.Buffer
	agg       *debounce.Aggregator
	gate      *ratecontrol.Gate
	platform  delivery.Platform
	scheduler *delivery.Scheduler
	notifier  Notifier
	cache     *gocache.Cache
	rand      *rand.Rand
	sleep     func(ctx context.Context, d time.Duration) error
}

type Deps struct {
	Logger   *slog.Logger
	DB       *gorm.DB
	Queue    *inference.Queue
	Store    *memory.Store
	History  *history.Buffer
	Debounce *debounce.Aggregator
	Gate     *ratecontrol.Gate
	Platform delivery.Platform
	Notifier Notifier
	Rand     *rand.Rand
}

func New(cfg Config, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := deps.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	p := &Pipeline{
		cfg:      cfg,
		logger:   logger,
		gdb:      deps.DB,
		queue:    deps.Queue,
		store:    deps.Store,
		turns:    deps.History,
		agg:      deps.Debounce,
		gate:     deps.Gate,
		platform: deps.Platform,
		notifier: deps.Notifier,
		cache:    gocache.New(30*time.Second, time.Minute),
		rand:     r,
		sleep:    ctxSleep,
	}
	p.scheduler = delivery.NewScheduler(deps.Platform, cfg.Humanize, r, logger, p.recordOutbound)
	return p
}

// SetIdentity fills in the account identity resolved at startup and records
// it as the active account row. Must be called before the first Handle.
func (p *Pipeline) SetIdentity(platformID int64, username, displayName string) {
	p.cfg.BotUsername = username
	if p.gdb != nil && platformID != 0 {
		if err := db.UpsertAccount(p.gdb, platformID, username, displayName); err != nil {
			p.logger.Warn("account_upsert_error", "error", err.Error())
		}
	}
}

// Handle is the fast path: record the message, join or open a debounce
// batch. The batch opener continues in its own goroutine; ctx should be the
// runtime's long-lived context, not a per-update one.
func (p *Pipeline) Handle(ctx context.Context, in Inbound) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return
	}
	in.Text = text

	p.recordInbound(in)

	key := debounce.Key{ChatID: in.ChatID, ThreadID: in.ThreadID}
	if p.agg.Submit(key, text, in.UserID, in.UserName) {
		go p.processBatch(ctx, key, in)
	}
}

// processBatch runs the slow path for one debounced batch. in is the batch
// opener; its chat/thread/reply flags stand for the whole batch.
func (p *Pipeline) processBatch(ctx context.Context, key debounce.Key, in Inbound) {
	batch, ok := p.agg.Collect(ctx, key)
	if !ok {
		return
	}
	corrID := uuid.New().String()
	logger := p.logger.With("corr_id", corrID, "chat_id", in.ChatID)
	logger.Debug("batch_collected", "messages", batch.Count, "chars", len(batch.Text))

	settings, err := p.chatSettings(in.ChatID)
	if err != nil {
		logger.Error("chat_settings_error", "error", err.Error())
		return
	}
	if !settings.AutoReplyEnabled {
		logger.Debug("auto_reply_disabled")
		return
	}
	persona := p.activePersona()

	dec := trigger.Decide(p.triggerOptions(in, batch.Text, settings, persona))
	if !dec.Reply {
		logger.Debug("trigger_declined", "reason", dec.Reason)
		return
	}
	logger.Debug("trigger_accepted", "reason", dec.Reason)

	if !p.gate.AllowUser(batch.UserID) {
		logger.Info("user_rate_limited", "user_id", batch.UserID)
		return
	}
	cooldown := time.Duration(settings.CooldownSeconds) * time.Second
	if !p.gate.AllowChat(in.ChatID, cooldown) {
		logger.Debug("chat_cooldown_active")
		return
	}

	if err := p.sleep(ctx, humanize.ResponseDelay(p.rand, p.cfg.Humanize, batch.Text)); err != nil {
		return
	}

	memories := p.retrieveMemories(ctx, logger, in.ChatID, batch.Text, settings)
	identity := p.identityName(persona)
	personaPrompt := p.cfg.PersonaPrompt
	if persona != nil {
		personaPrompt = persona.Prompt
	}
	built := prompt.Build(personaPrompt, memories, p.turns.Recent(in.ChatID, settings.ContextDepth), identity)

	start := time.Now()
	reply, err := p.queue.Generate(ctx, p.cfg.ChatModel, built, llm.GenerateOptions{
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil {
		p.handleGenerateError(ctx, logger, in, err, time.Since(start))
		return
	}
	logger.Info("reply_generated", "elapsed_ms", time.Since(start).Milliseconds(), "reason", dec.Reason)

	reply = humanize.ApplyBehaviorRules(reply, identity)

	useReply := !in.IsPrivate && p.rand.Float64() < p.cfg.GroupReplyProbability
	sent, err := p.scheduler.Deliver(ctx, in.ChatID, reply, in.MessageID, useReply)
	if err != nil {
		logger.Warn("delivery_error", "chunks_sent", sent, "error", err.Error())
		return
	}
	logger.Info("reply_delivered", "chunks", sent)
}

func (p *Pipeline) handleGenerateError(ctx context.Context, logger *slog.Logger, in Inbound, err error, elapsed time.Duration) {
	if llm.IsTimeout(err) {
		logger.Error("generation_timeout", "elapsed_ms", elapsed.Milliseconds())
	} else {
		logger.Error("generation_error", "elapsed_ms", elapsed.Milliseconds(), "error", err.Error())
	}
	if p.notifier != nil {
		p.notifier.Notify(ctx, fmt.Sprintf("generation failed for chat %d: %v", in.ChatID, err))
	}
	if msg := strings.TrimSpace(p.cfg.FallbackMessage); msg != "" {
		if sendErr := p.platform.SendMessage(ctx, in.ChatID, msg, 0, true); sendErr != nil {
			logger.Warn("fallback_send_error", "error", sendErr.Error())
		}
	}
}

// recordInbound persists the message and kicks off embedding off the hot
// path. Each message in a batch is recorded individually.
func (p *Pipeline) recordInbound(in Inbound) {
	msg := &models.Message{
		ChatID:   in.ChatID,
		ThreadID: in.ThreadID,
		UserID:   in.UserID,
		Role:     "user",
		Content:  in.Text,
	}
	if _, err := db.SaveMessage(p.gdb, msg); err != nil {
		p.logger.Warn("message_save_error", "chat_id", in.ChatID, "error", err.Error())
	}

	speaker := in.UserName
	if speaker == "" {
		speaker = "User"
	}
	p.turns.Append(in.ChatID, prompt.Turn{Speaker: speaker, Text: in.Text})

	line := speaker + ": " + in.Text
	p.store.SaveAsync(in.ChatID, line, func(ctx context.Context) ([]float64, error) {
		return p.queue.Embed(ctx, p.cfg.EmbedModel, in.Text)
	})
}

// recordOutbound mirrors recordInbound for each chunk the bot sends.
func (p *Pipeline) recordOutbound(chatID int64, chunk string) {
	identity := p.identityName(p.activePersona())

	msg := &models.Message{
		ChatID:  chatID,
		Role:    "assistant",
		Content: chunk,
	}
	if _, err := db.SaveMessage(p.gdb, msg); err != nil {
		p.logger.Warn("message_save_error", "chat_id", chatID, "error", err.Error())
	}

	p.turns.Append(chatID, prompt.Turn{Speaker: identity, Text: chunk})

	line := identity + ": " + chunk
	p.store.SaveAsync(chatID, line, func(ctx context.Context) ([]float64, error) {
		return p.queue.Embed(ctx, p.cfg.EmbedModel, chunk)
	})
}

func (p *Pipeline) retrieveMemories(ctx context.Context, logger *slog.Logger, chatID int64, text string, settings models.ChatSettings) []string {
	if !settings.RagEnabled {
		return nil
	}
	query, err := p.queue.Embed(ctx, p.cfg.EmbedModel, text)
	if err != nil {
		logger.Warn("query_embed_error", "error", err.Error())
		return nil
	}
	decay := db.GetConfigFloat(p.gdb, "rag_decay_rate", p.cfg.RagDecayRate)
	retriever := memory.NewRetriever(p.store, decay, p.cfg.RagScanLimit)
	memories, err := retriever.Retrieve(ctx, chatID, query, p.cfg.RagTopN)
	if err != nil {
		logger.Warn("memory_retrieve_error", "error", err.Error())
		return nil
	}
	logger.Debug("memories_retrieved", "count", len(memories))
	return memories
}

func (p *Pipeline) triggerOptions(in Inbound, text string, settings models.ChatSettings, persona *models.Persona) trigger.Options {
	replyMode := db.GetConfigString(p.gdb, "reply_mode", settings.ReplyMode)
	probability := db.GetConfigFloat(p.gdb, "random_reply_probability", p.cfg.RandomReplyProbability)

	o := trigger.Options{
		Text:         text,
		IsPrivate:    in.IsPrivate,
		IsReplyToBot: in.IsReplyToBot,
		HasMedia:     in.HasMedia,
		BotName:      p.cfg.BotName,
		BotUsername:  p.cfg.BotUsername,
		ChatKeywords: settings.KeywordList(),
		ReplyMode:    replyMode,
		Probability:  probability,
		Rand:         p.rand,
	}
	if persona != nil {
		o.PersonaName = persona.DisplayName
		o.PersonaKeywords = persona.KeywordList()
	}
	return o
}

func (p *Pipeline) identityName(persona *models.Persona) string {
	if persona != nil && strings.TrimSpace(persona.DisplayName) != "" {
		return persona.DisplayName
	}
	return p.cfg.BotName
}

func (p *Pipeline) chatSettings(chatID int64) (models.ChatSettings, error) {
	cacheKey := fmt.Sprintf("settings:%d", chatID)
	if v, ok := p.cache.Get(cacheKey); ok {
		return v.(models.ChatSettings), nil
	}
	settings, err := db.GetOrCreateChatSettings(p.gdb, chatID)
	if err != nil {
		return models.ChatSettings{}, err
	}
	p.cache.Set(cacheKey, settings, gocache.DefaultExpiration)
	return settings, nil
}

func (p *Pipeline) activePersona() *models.Persona {
	if v, ok := p.cache.Get("persona"); ok {
		if persona, ok := v.(*models.Persona); ok {
			return persona
		}
		return nil
	}
	persona, err := db.GetActivePersona(p.gdb)
	if err != nil {
		p.logger.Warn("persona_load_error", "error", err.Error())
		return nil
	}
	p.cache.Set("persona", persona, time.Minute)
	return persona
}

// InvalidateCache drops cached settings and persona, used after admin edits.
func (p *Pipeline) InvalidateCache() {
	p.cache.Flush()
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
