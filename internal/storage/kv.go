package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"coworkshell/internal/config"
	"coworkshell/internal/logger"
)

// KV 按名称读写字符串值的持久化存储
type KV interface {
	// Get 读取键值，不存在时 ok 为 false
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set 写入或覆盖键值
	Set(ctx context.Context, key, value string) error
	// SetIfAbsent 仅在键不存在时写入，返回是否写入成功
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	// Delete 删除键，不存在时不报错
	Delete(ctx context.Context, key string) error
}

// Setting 设置表记录
type Setting struct {
	Name      string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// SQLStore 基于 gorm + sqlite 的 KV 实现
type SQLStore struct {
	db *gorm.DB
}

// Open 打开 sqlite 数据库并迁移设置表
func Open(cfg config.SqliteConfig, l logger.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(cfg.Dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(cfg.Dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: cfg.Prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Dsn, err)
	}
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, fmt.Errorf("migrate settings: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var row Setting
	err := s.db.WithContext(ctx).First(&row, "name = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return row.Value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Name: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Setting{Name: key, Value: value})
	if res.Error != nil {
		return false, fmt.Errorf("set %s: %w", key, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&Setting{}, "name = ?", key).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close 关闭底层连接
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
