// Package testutil provides SQLite-backed gorm fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/database"
	"github.com/stroyteh/kanban-service/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// SetupTestDB opens a private in-memory database with the full schema.
// A single connection is used so every statement sees the same memory database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=1", name, dbCounter.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateBoard inserts a board with the given columns in order
func CreateBoard(t *testing.T, db *gorm.DB, key string, columnKeys ...string) (*domain.Board, []domain.Column) {
	t.Helper()

	board := &domain.Board{Key: key, Title: strings.ToUpper(key)}
	require.NoError(t, db.Create(board).Error)

	columns := make([]domain.Column, 0, len(columnKeys))
	for i, ck := range columnKeys {
		col := domain.Column{BoardID: board.ID, Key: ck, Title: ck, Order: i + 1}
		require.NoError(t, db.Create(&col).Error)
		columns = append(columns, col)
	}
	return board, columns
}

// CreateCard inserts a card directly, bypassing events
func CreateCard(t *testing.T, db *gorm.DB, board *domain.Board, column domain.Column, cardType domain.CardType, title string) *domain.Card {
	t.Helper()

	card := &domain.Card{
		BoardID:  board.ID,
		ColumnID: column.ID,
		Type:     cardType,
		Title:    title,
	}
	require.NoError(t, db.Create(card).Error)
	return card
}

// CountEvents counts card events of a type for a card
func CountEvents(t *testing.T, db *gorm.DB, cardID int64, eventType domain.EventType) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&domain.CardEvent{}).
		Where("card_id = ? AND event_type = ?", cardID, eventType).
		Count(&n).Error)
	return n
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }
