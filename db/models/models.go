package models

import "time"

// Persona is a system-prompt identity. At most one row has IsActive set;
// activation is handled by the admin surface, this core only reads it.
type Persona struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Prompt      string `gorm:"not null"`
	DisplayName string
	// Triggers is a comma-separated keyword list, stored lowercase.
	Triggers  string
	IsActive  bool `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// KeywordList splits the stored trigger string into normalized keywords.
func (p *Persona) KeywordList() []string {
	return SplitKeywords(p.Triggers)
}

// ChatSettings holds the per-chat reply policy.
type ChatSettings struct {
	ChatID           int64  `gorm:"primaryKey;autoIncrement:false"`
	AutoReplyEnabled bool   `gorm:"not null;default:true"`
	ReplyMode        string `gorm:"not null;default:mention_only"`
	CooldownSeconds  int    `gorm:"not null;default:5"`
	ContextDepth     int    `gorm:"not null;default:10"`
	RagEnabled       bool   `gorm:"not null;default:true"`
	// Keywords is a comma-separated chat-level trigger list, stored lowercase.
	Keywords  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *ChatSettings) KeywordList() []string {
	return SplitKeywords(s.Keywords)
}

// Account is a managed chat account this process can drive. Provisioning
// and session handling belong to the admin surface, this core only reads
// the active row for identity defaults.
type Account struct {
	ID          uint  `gorm:"primaryKey"`
	PlatformID  int64 `gorm:"uniqueIndex"`
	Username    string
	DisplayName string
	IsActive    bool `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is one row of the raw conversation log.
type Message struct {
	ID        uint  `gorm:"primaryKey"`
	ChatID    int64 `gorm:"index:idx_messages_chat"`
	ThreadID  int64
	UserID    int64
	Role      string `gorm:"not null"` // user|assistant
	Content   string `gorm:"not null"`
	CreatedAt time.Time
}

// MemoryChunk stores one embedded message for retrieval. Embedding is the
// little-endian float64 encoding produced by the memory package. Rows are
// never mutated except Importance, and are pruned by the retention policy.
type MemoryChunk struct {
	ID         uint  `gorm:"primaryKey"`
	ChatID     int64 `gorm:"index:idx_memory_chat"`
	Content    string
	Embedding  []byte
	Importance float64 `gorm:"not null;default:1"`
	CreatedAt  time.Time
}

// MemoryWatermark records, per chat, the newest chunk ID already rolled into
// a summary checkpoint.
type MemoryWatermark struct {
	ChatID    int64 `gorm:"primaryKey;autoIncrement:false"`
	ThroughID uint
	UpdatedAt time.Time
}

// RuntimeConfig is a key/value override table; values set at runtime take
// precedence over file configuration.
type RuntimeConfig struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}
