package access

import (
	"context"
	"fmt"
)

// AdminChecker is the roster lookup the gate needs.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// BanChecker is the ban-flag lookup the gate needs.
type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

// Gate answers authorization and ban questions. Both checks are reads only.
type Gate struct {
	ownerID int64
	admins  AdminChecker
	bans    BanChecker
}

func NewGate(ownerID int64, admins AdminChecker, bans BanChecker) *Gate {
	return &Gate{ownerID: ownerID, admins: admins, bans: bans}
}

func (g *Gate) OwnerID() int64 {
	return g.ownerID
}

func (g *Gate) IsOwner(userID int64) bool {
	return userID == g.ownerID
}

// IsAuthorized is true for the owner and for roster members. The owner never
// needs a roster lookup.
func (g *Gate) IsAuthorized(ctx context.Context, userID int64) (bool, error) {
	if g.IsOwner(userID) {
		return true, nil
	}
	ok, err := g.admins.IsAdmin(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check admin roster: %w", err)
	}
	return ok, nil
}

func (g *Gate) IsBanned(ctx context.Context, userID int64) (bool, error) {
	banned, err := g.bans.IsBanned(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check ban flag: %w", err)
	}
	return banned, nil
}
