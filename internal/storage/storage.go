package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aiwuxian/apocalypse/internal/models"
	_ "modernc.org/sqlite"
)

var ErrSaveNotFound = errors.New("存档不存在")

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据库结构失败: %w", err)
	}

	return s, nil
}

func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS save_games (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		slot INTEGER NOT NULL,
		game_date DATETIME NOT NULL,
		data TEXT NOT NULL, -- JSON object
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (owner, slot)
	);

	CREATE INDEX IF NOT EXISTS idx_save_owner ON save_games(owner);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// UpsertSave 写入槽位；同一槽位已有存档时保留原ID与创建时间
func (s *Storage) UpsertSave(ctx context.Context, save *models.SaveGame) error {
	dataJSON, err := json.Marshal(save.Data)
	if err != nil {
		return fmt.Errorf("序列化存档失败: %w", err)
	}
	if save.UpdatedAt.IsZero() {
		save.UpdatedAt = time.Now()
	}
	if save.CreatedAt.IsZero() {
		save.CreatedAt = save.UpdatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO save_games (id, owner, slot, game_date, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, slot) DO UPDATE SET
			game_date=excluded.game_date, data=excluded.data, updated_at=excluded.updated_at
	`, save.ID, save.Owner, save.Slot, save.GameDate, string(dataJSON), save.CreatedAt, save.UpdatedAt)

	return err
}

func (s *Storage) GetSave(ctx context.Context, owner string, slot int) (*models.SaveGame, error) {
	var save models.SaveGame
	var dataJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner, slot, game_date, data, created_at, updated_at
		FROM save_games WHERE owner = ? AND slot = ?
	`, owner, slot).Scan(&save.ID, &save.Owner, &save.Slot, &save.GameDate, &dataJSON,
		&save.CreatedAt, &save.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%d", ErrSaveNotFound, owner, slot)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(dataJSON), &save.Data); err != nil {
		return nil, fmt.Errorf("解析存档失败: %w", err)
	}

	return &save, nil
}

// ListSaves 按槽位排序
func (s *Storage) ListSaves(ctx context.Context, owner string) ([]models.SaveSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot, game_date, updated_at
		FROM save_games WHERE owner = ?
		ORDER BY slot
	`, owner)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.SaveSlot
	for rows.Next() {
		var slot models.SaveSlot
		if err := rows.Scan(&slot.Slot, &slot.GameDate, &slot.UpdatedAt); err != nil {
			continue
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

func (s *Storage) DeleteSave(ctx context.Context, owner string, slot int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM save_games WHERE owner = ? AND slot = ?`, owner, slot)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%d", ErrSaveNotFound, owner, slot)
	}
	return nil
}
