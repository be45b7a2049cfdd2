package models

import (
	"time"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
)

// UserRole binds a username to its journal-wide permission level.
type UserRole struct {
	UserID    int64          `gorm:"column:user_id;primaryKey;autoIncrement"`
	Username  string         `gorm:"column:username;type:text;not null;uniqueIndex:ux_user_roles_username"`
	RoleType  enums.RoleType `gorm:"column:role_type;type:text;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
