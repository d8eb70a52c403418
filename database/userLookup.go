package database

import (
	"context"
	"errors"
	"fmt"

	"villageserver/models"

	"gorm.io/gorm"
)

// UserLookup はユーザーテーブルからプレイヤーのデバイストークンを引きます。
type UserLookup struct {
	db *gorm.DB
}

func NewUserLookup(db *gorm.DB) *UserLookup {
	return &UserLookup{db: db}
}

func (u *UserLookup) Lookup(ctx context.Context, playerID string) (string, bool, error) {
	var user models.User
	err := u.db.WithContext(ctx).Where("player_id = ?", playerID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find user %s: %w", playerID, err)
	}
	if user.DeviceToken == "" {
		return "", false, nil
	}
	return user.DeviceToken, true, nil
}
