package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.ignore_older_than", 5*time.Minute)
	viper.SetDefault("owner_ids", []int64{})

	// Ollama backend
	viper.SetDefault("ollama.url", "http://localhost:11434")
	viper.SetDefault("ollama.chat_model", "llama3")
	viper.SetDefault("ollama.embedding_model", "nomic-embed-text")
	viper.SetDefault("ollama.vision_model", "llava")

	// Inference queue
	viper.SetDefault("llm.max_concurrency", 3)
	viper.SetDefault("llm.request_timeout", 120*time.Second)
	viper.SetDefault("llm.temperature", 0.8)
	viper.SetDefault("llm.max_tokens", 512)

	// Reply policy
	viper.SetDefault("reply.debounce", 1500*time.Millisecond)
	viper.SetDefault("reply.cooldown", 5*time.Second)
	viper.SetDefault("reply.user_burst_limit", 5)
	viper.SetDefault("reply.user_burst_window", 60*time.Second)
	viper.SetDefault("reply.probability", 0.05)
	viper.SetDefault("reply.group_reply_probability", 0.3)
	viper.SetDefault("reply.fallback_message", "Sorry, I lost my train of thought. Say that again?")

	// Persona fallback when no active persona row exists.
	viper.SetDefault("persona.name", "Puppeteer")
	viper.SetDefault("persona.prompt", "You are a friendly, casual chat participant. Keep replies short and natural.")

	// Long-term memory
	viper.SetDefault("memory.decay_rate", 0.1)
	viper.SetDefault("memory.retention_cap", 1000)
	viper.SetDefault("memory.scan_limit", 100)
	viper.SetDefault("memory.summary_threshold", 50)
	viper.SetDefault("memory.max_chunks", 3)
	viper.SetDefault("memory.retention_interval", time.Hour)

	// Humanizer
	viper.SetDefault("humanize.typing_speed_cpm", 300)
	viper.SetDefault("humanize.min_response_delay", 1*time.Second)
	viper.SetDefault("humanize.max_response_delay", 5*time.Second)
	viper.SetDefault("humanize.chunk_delimiter", "||")
	viper.SetDefault("humanize.distraction_probability", 0.2)

	// Media preprocessing
	viper.SetDefault("voice.enabled", false)
	viper.SetDefault("voice.whisper_url", "http://localhost:9000")
	viper.SetDefault("voice.whisper_model", "whisper-1")
	viper.SetDefault("vision.enabled", false)
	viper.SetDefault("media.max_bytes", int64(20*1024*1024))

	// Database
	viper.SetDefault("db.dsn", "")
	viper.SetDefault("db.auto_migrate", true)
	viper.SetDefault("db.sqlite.busy_timeout_ms", 5000)
	viper.SetDefault("db.sqlite.wal", true)
	viper.SetDefault("db.sqlite.foreign_keys", true)

	// Logging
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)
}
