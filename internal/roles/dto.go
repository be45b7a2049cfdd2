package roles

import (
	"time"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db/models"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
)

// RoleAssignment is the transport shape of one user-role row.
type RoleAssignment struct {
	UserID    int64          `json:"user_id"`
	Username  string         `json:"username"`
	Role      enums.RoleType `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

func FromModel(m *models.UserRole) *RoleAssignment {
	if m == nil {
		return nil
	}

	return &RoleAssignment{
		UserID:    m.UserID,
		Username:  m.Username,
		Role:      m.RoleType,
		CreatedAt: m.CreatedAt,
	}
}
