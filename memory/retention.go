package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bobberdolle1/Puppeteer/db/models"
	"gorm.io/gorm"
)

// Summarizer rolls a batch of old chunk texts into one compact replacement.
// How the summary is produced is a pluggable strategy.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string) (string, error)
}

// Retention caps stored chunks per chat and, once enough unsummarized chunks
// accumulate, rolls the oldest into a summary checkpoint and advances the
// per-chat watermark.
type Retention struct {
	store            *Store
	logger           *slog.Logger
	Cap              int
	SummaryThreshold int
	Summarizer       Summarizer
	Embed            func(ctx context.Context, text string) ([]float64, error)
}

func NewRetention(store *Store, logger *slog.Logger, cap, summaryThreshold int) *Retention {
	if logger == nil {
		logger = slog.Default()
	}
	if cap <= 0 {
		cap = 1000
	}
	return &Retention{
		store:            store,
		logger:           logger,
		Cap:              cap,
		SummaryThreshold: summaryThreshold,
	}
}

// Run applies the retention policy to one chat.
func (r *Retention) Run(ctx context.Context, chatID int64) error {
	if err := r.trim(ctx, chatID); err != nil {
		return err
	}
	if r.Summarizer != nil && r.Embed != nil && r.SummaryThreshold > 0 {
		if err := r.summarize(ctx, chatID); err != nil {
			return err
		}
	}
	return nil
}

// trim deletes everything beyond the Cap most recent chunks.
func (r *Retention) trim(ctx context.Context, chatID int64) error {
	gdb := r.store.gdb.WithContext(ctx)
	sub := gdb.Model(&models.MemoryChunk{}).
		Select("id").
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(r.Cap)
	return gdb.
		Where("chat_id = ? AND id NOT IN (?)", chatID, sub).
		Delete(&models.MemoryChunk{}).Error
}

func (r *Retention) summarize(ctx context.Context, chatID int64) error {
	gdb := r.store.gdb.WithContext(ctx)

	var wm models.MemoryWatermark
	err := gdb.First(&wm, "chat_id = ?", chatID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var rows []models.MemoryChunk
	err = gdb.
		Where("chat_id = ? AND id > ?", chatID, wm.ThroughID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return err
	}
	if len(rows) <= r.SummaryThreshold {
		return nil
	}

	// Leave the newest SummaryThreshold chunks untouched; roll up the rest.
	old := rows[:len(rows)-r.SummaryThreshold]
	texts := make([]string, 0, len(old))
	for _, c := range old {
		texts = append(texts, c.Content)
	}
	summary, err := r.Summarizer.Summarize(ctx, texts)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return nil
	}
	vec, err := r.Embed(ctx, summary)
	if err != nil {
		return fmt.Errorf("embed summary: %w", err)
	}

	through := old[len(old)-1].ID
	return gdb.Transaction(func(tx *gorm.DB) error {
		row := models.MemoryChunk{
			ChatID:     chatID,
			Content:    summary,
			Embedding:  EncodeVector(vec),
			Importance: 1.5,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		ids := make([]uint, 0, len(old))
		for _, c := range old {
			ids = append(ids, c.ID)
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.MemoryChunk{}).Error; err != nil {
			return err
		}
		// Watermark stops at the newest rolled chunk so the survivors stay
		// eligible for a later pass.
		next := models.MemoryWatermark{ChatID: chatID, ThroughID: through, UpdatedAt: time.Now().UTC()}
		return tx.Save(&next).Error
	})
}
