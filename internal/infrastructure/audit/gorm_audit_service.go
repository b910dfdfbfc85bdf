package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/genlayerlabs/glvault/internal/domain/models"
)

// auditEntryRow is the GORM model for the Postgres audit mirror table. It
// mirrors models.AuditEntry field-for-field; kept separate so the canonical
// KV shape and the relational schema can evolve independently.
type auditEntryRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Alias     string `gorm:"index;size:64"`
	Caller    string `gorm:"size:128"`
	Path      string `gorm:"size:512"`
	Method    string `gorm:"size:8"`
	Status    int
	LatencyMs int64
	Timestamp int64  `gorm:"index"`
	Error     string `gorm:"size:512"`
}

// TableName pins the row to a stable table name regardless of struct name.
func (auditEntryRow) TableName() string { return "audit_entries" }

// PostgresMirror writes every recorded audit entry into a Postgres table
// for long-term analytical querying alongside the canonical KV log.
type PostgresMirror struct {
	db *gorm.DB
}

// NewPostgresMirror builds a PostgresMirror and migrates its table.
func NewPostgresMirror(db *gorm.DB) (*PostgresMirror, error) {
	if err := db.AutoMigrate(&auditEntryRow{}); err != nil {
		return nil, err
	}
	return &PostgresMirror{db: db}, nil
}

// Mirror inserts entry as a new row.
func (m *PostgresMirror) Mirror(ctx context.Context, entry models.AuditEntry) error {
	row := auditEntryRow{
		ID:        entry.ID,
		Alias:     entry.Alias,
		Caller:    entry.Caller,
		Path:      entry.Path,
		Method:    entry.Method,
		Status:    entry.Status,
		LatencyMs: entry.LatencyMs,
		Timestamp: entry.Timestamp,
		Error:     entry.Error,
	}
	return m.db.WithContext(ctx).Create(&row).Error
}
