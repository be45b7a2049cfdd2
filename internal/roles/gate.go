package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db/models"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
)

type roleLookup interface {
	FindByUsername(ctx context.Context, username string) (*models.UserRole, error)
}

// Gate decides whether a username may perform an operation against the
// journal.
type Gate interface {
	Check(ctx context.Context, username string, op enums.Operation) (bool, error)
}

type gate struct {
	lookup roleLookup
}

// NewGate builds an authorization gate backed by the provided role lookup.
func NewGate(lookup roleLookup) (Gate, error) {
	if lookup == nil {
		return nil, fmt.Errorf("role lookup required")
	}
	return &gate{lookup: lookup}, nil
}

var rolePermissions = map[enums.RoleType]map[enums.Operation]bool{
	enums.RoleTypeAdmin: {
		enums.OperationPublish:    true,
		enums.OperationQuery:      true,
		enums.OperationAdminister: true,
	},
	enums.RoleTypePublisher: {
		enums.OperationPublish: true,
		enums.OperationQuery:   true,
	},
	enums.RoleTypeViewer: {
		enums.OperationQuery: true,
	},
}

// Check reports whether username may perform op. Usernames without a role
// record are denied, not erred; only a failing role lookup returns an error.
func (g *gate) Check(ctx context.Context, username string, op enums.Operation) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || !op.IsValid() {
		return false, nil
	}

	assignment, err := g.lookup.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load role")
	}
	return rolePermissions[assignment.RoleType][op], nil
}
