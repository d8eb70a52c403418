package models

import (
	"gorm.io/gorm"
)

// User モデルの定義。プレイヤーIDと通知先のデバイストークンを結びつける
type User struct {
	gorm.Model
	PlayerID    string `gorm:"uniqueIndex;not null"`
	DisplayName string
	DeviceToken string // 空の場合は通知しない
}
