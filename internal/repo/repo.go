package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"soil-monitor/internal/domain"
)

// Models 参与 AutoMigrate 的全部表
func Models() []any {
	return []any{&domain.User{}, &domain.Reading{}, &domain.AnomalyRecord{}}
}

func Migrate(db *gorm.DB) error { return db.AutoMigrate(Models()...) }

// exists 用于外键校验（不依赖数据库是否开启 FK 约束）
func exists(ctx context.Context, db *gorm.DB, model any, id uint) error {
	var n int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	return nil
}

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 驱动未开启 TranslateError 时按错误文本兜底
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
