package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bobberdolle1/Puppeteer/db"
	"github.com/bobberdolle1/Puppeteer/internal/botruntime"
	"github.com/bobberdolle1/Puppeteer/internal/debounce"
	"github.com/bobberdolle1/Puppeteer/internal/history"
	"github.com/bobberdolle1/Puppeteer/internal/humanize"
	"github.com/bobberdolle1/Puppeteer/internal/inference"
	"github.com/bobberdolle1/Puppeteer/internal/logutil"
	"github.com/bobberdolle1/Puppeteer/internal/media"
	"github.com/bobberdolle1/Puppeteer/internal/pipeline"
	"github.com/bobberdolle1/Puppeteer/internal/ratecontrol"
	"github.com/bobberdolle1/Puppeteer/internal/telegram"
	"github.com/bobberdolle1/Puppeteer/llm"
	"github.com/bobberdolle1/Puppeteer/memory"
	"github.com/bobberdolle1/Puppeteer/providers/ollama"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBot(runCtx)
		},
	}
	cmd.Flags().String("token", "", "Telegram bot token (overrides telegram.bot_token).")
	_ = viper.BindPFlag("telegram.bot_token", cmd.Flags().Lookup("token"))
	return cmd
}

func runBot(ctx context.Context) error {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return err
	}

	token := strings.TrimSpace(viper.GetString("telegram.bot_token"))
	if token == "" {
		return fmt.Errorf("telegram.bot_token is required (PUPPETEER_TELEGRAM_BOT_TOKEN)")
	}

	dbCfg := db.DefaultConfig()
	dbCfg.DSN, err = db.ResolveSQLiteDSN(viper.GetString("db.dsn"))
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}
	dbCfg.AutoMigrate = viper.GetBool("db.auto_migrate")
	dbCfg.SQLite.BusyTimeoutMs = viper.GetInt("db.sqlite.busy_timeout_ms")
	dbCfg.SQLite.WAL = viper.GetBool("db.sqlite.wal")
	dbCfg.SQLite.ForeignKeys = viper.GetBool("db.sqlite.foreign_keys")
	gdb, err := db.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	logger.Info("database_ready", "dsn", dbCfg.DSN)

	backend := ollama.New(viper.GetString("ollama.url"))
	if !backend.Health(ctx) {
		logger.Warn("ollama_unreachable", "url", viper.GetString("ollama.url"))
	}
	queue := inference.NewQueue(backend, viper.GetInt("llm.max_concurrency"), viper.GetDuration("llm.request_timeout"))

	store := memory.NewStore(gdb, logger)
	turns := history.NewBuffer(20)
	agg := debounce.New(viper.GetDuration("reply.debounce"))
	gate := ratecontrol.NewGate(viper.GetInt("reply.user_burst_limit"), viper.GetDuration("reply.user_burst_window"))

	api := telegram.NewClient(nil, viper.GetString("telegram.base_url"), token)
	platform := &botruntime.Platform{API: api}
	owners := ownerIDs()
	notifier := &botruntime.Notifier{API: api, OwnerIDs: owners, Logger: logger}

	humanCfg := humanize.Config{
		TypingSpeedCPM:         viper.GetInt("humanize.typing_speed_cpm"),
		MinResponseDelay:       viper.GetDuration("humanize.min_response_delay"),
		MaxResponseDelay:       viper.GetDuration("humanize.max_response_delay"),
		ChunkDelimiter:         viper.GetString("humanize.chunk_delimiter"),
		DistractionProbability: viper.GetFloat64("humanize.distraction_probability"),
	}

	pipe := pipeline.New(pipeline.Config{
		BotName:                viper.GetString("persona.name"),
		ChatModel:              viper.GetString("ollama.chat_model"),
		EmbedModel:             viper.GetString("ollama.embedding_model"),
		Temperature:            viper.GetFloat64("llm.temperature"),
		MaxTokens:              viper.GetInt("llm.max_tokens"),
		PersonaPrompt:          viper.GetString("persona.prompt"),
		RandomReplyProbability: viper.GetFloat64("reply.probability"),
		RagDecayRate:           viper.GetFloat64("memory.decay_rate"),
		RagScanLimit:           viper.GetInt("memory.scan_limit"),
		RagTopN:                viper.GetInt("memory.max_chunks"),
		GroupReplyProbability:  viper.GetFloat64("reply.group_reply_probability"),
		FallbackMessage:        viper.GetString("reply.fallback_message"),
		Humanize:               humanCfg,
	}, pipeline.Deps{
		Logger:   logger,
		DB:       gdb,
		Queue:    queue,
		Store:    store,
		History:  turns,
		Debounce: agg,
		Gate:     gate,
		Platform: platform,
		Notifier: notifier,
	})

	summaryThreshold := db.GetConfigInt(gdb, "summary_threshold", viper.GetInt("memory.summary_threshold"))
	retention := memory.NewRetention(store, logger, viper.GetInt("memory.retention_cap"), summaryThreshold)
	retention.Summarizer = &queueSummarizer{queue: queue, model: viper.GetString("ollama.chat_model")}
	retention.Embed = func(ctx context.Context, text string) ([]float64, error) {
		return queue.Embed(ctx, viper.GetString("ollama.embedding_model"), text)
	}

	var transcriber *media.Transcriber
	if viper.GetBool("voice.enabled") {
		transcriber = media.NewTranscriber(viper.GetString("voice.whisper_url"), viper.GetString("voice.whisper_model"))
	}
	var describer *media.Describer
	if viper.GetBool("vision.enabled") {
		describer = media.NewDescriber(backend, viper.GetString("ollama.vision_model"))
	}

	opts := botruntime.DefaultOptions()
	opts.PollTimeout = viper.GetDuration("telegram.poll_timeout")
	opts.IgnoreOlderThan = viper.GetDuration("telegram.ignore_older_than")
	opts.OwnerIDs = owners
	opts.MaxMediaBytes = viper.GetInt64("media.max_bytes")
	opts.RetentionInterval = viper.GetDuration("memory.retention_interval")

	rt := botruntime.New(opts, logger, api, pipe, transcriber, describer, retention, store)
	return rt.Run(ctx)
}

// ownerIDs reads owner_ids as int64 chat IDs. Viper has no int64-slice
// getter, so the values arrive as ints.
func ownerIDs() []int64 {
	raw := viper.GetIntSlice("owner_ids")
	out := make([]int64, 0, len(raw))
	for _, id := range raw {
		out = append(out, int64(id))
	}
	return out
}

// queueSummarizer produces memory summaries through the shared inference
// queue so retention competes fairly with live replies.
type queueSummarizer struct {
	queue *inference.Queue
	model string
}

func (s *queueSummarizer) Summarize(ctx context.Context, texts []string) (string, error) {
	prompt := "Summarize the following conversation fragments into one short paragraph, keeping names, facts, and decisions:\n\n" +
		strings.Join(texts, "\n")
	return s.queue.Generate(ctx, s.model, prompt, llm.GenerateOptions{Temperature: 0.2, MaxTokens: 256})
}
