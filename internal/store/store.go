// Package store persists lobby snapshots so a restarted server can be
// pointed at the same database. Writes happen off the dispatch path;
// the in-memory document stays authoritative either way.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JaceRockman/rulette-server/internal/engine"
)

type SnapshotStore interface {
	Save(ctx context.Context, state engine.State) error
	Delete(ctx context.Context, lobbyID string) error
}

// Noop is used when no database is configured.
type Noop struct{}

func (Noop) Save(context.Context, engine.State) error { return nil }
func (Noop) Delete(context.Context, string) error     { return nil }

type Snapshot struct {
	LobbyID   string `gorm:"primaryKey;size:36"`
	Code      string `gorm:"size:4;index"`
	State     []byte `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("migrate snapshots: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Save(ctx context.Context, state engine.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	row := Snapshot{
		LobbyID: state.ID,
		Code:    state.Code,
		State:   raw,
	}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lobby_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "state", "updated_at"}),
		}).
		Create(&row).Error
}

func (p *Postgres) Delete(ctx context.Context, lobbyID string) error {
	return p.db.WithContext(ctx).Delete(&Snapshot{}, "lobby_id = ?", lobbyID).Error
}
