package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/bobberdolle1/Puppeteer/db/models"
	"gorm.io/gorm"
)

// Chunk is one stored memory loaded back for scoring.
type Chunk struct {
	ID         uint
	Text       string
	Embedding  []float64
	Importance float64
	CreatedAt  time.Time
}

// Store persists message embeddings keyed by chat.
type Store struct {
	gdb    *gorm.DB
	logger *slog.Logger
}

func NewStore(gdb *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{gdb: gdb, logger: logger}
}

// Save appends one memory chunk with default importance.
func (s *Store) Save(ctx context.Context, chatID int64, text string, embedding []float64) error {
	return s.SaveWeighted(ctx, chatID, text, embedding, 1.0)
}

func (s *Store) SaveWeighted(ctx context.Context, chatID int64, text string, embedding []float64, importance float64) error {
	if importance <= 0 {
		importance = 1.0
	}
	row := models.MemoryChunk{
		ChatID:     chatID,
		Content:    text,
		Embedding:  EncodeVector(embedding),
		Importance: importance,
	}
	return s.gdb.WithContext(ctx).Create(&row).Error
}

// SaveAsync persists in a detached goroutine so the reply path never waits on
// storage. Failures are logged, not surfaced.
func (s *Store) SaveAsync(chatID int64, text string, embed func(ctx context.Context) ([]float64, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		vec, err := embed(ctx)
		if err != nil {
			s.logger.Warn("memory_embed_error", "chat_id", chatID, "error", err.Error())
			return
		}
		if err := s.Save(ctx, chatID, text, vec); err != nil {
			s.logger.Warn("memory_save_error", "chat_id", chatID, "error", err.Error())
		}
	}()
}

// RecentChunks loads up to limit most recent chunks for the chat, newest
// first. This is the bounded candidate scan used by retrieval.
func (s *Store) RecentChunks(ctx context.Context, chatID int64, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.MemoryChunk
	err := s.gdb.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Chunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, Chunk{
			ID:         r.ID,
			Text:       r.Content,
			Embedding:  DecodeVector(r.Embedding),
			Importance: r.Importance,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

// ChatIDs lists the distinct chats that currently have stored memory.
func (s *Store) ChatIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.gdb.WithContext(ctx).
		Model(&models.MemoryChunk{}).
		Distinct("chat_id").
		Pluck("chat_id", &ids).Error
	return ids, err
}
