// Package membership derives each user's group list from the group records.
package membership

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

// Store is the part of the entity store the synchronizer touches.
type Store interface {
	ListGroups(ctx context.Context) []models.Group
	ListUsers(ctx context.Context) []models.User
	SetUserGroups(ctx context.Context, id string, groups []string) error
}

// Synchronizer recomputes User.Groups from Group.MemberIDs. Runs are
// serialized so overlapping mutations cannot interleave their writes.
type Synchronizer struct {
	store Store
	log   zerolog.Logger
	mu    sync.Mutex
}

// New creates a Synchronizer.
func New(s Store, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{store: s, log: log.With().Str("component", "membership").Logger()}
}

// Sync overwrites every user's groups with the ids of the groups that list
// the user as a member. Group order follows the group collection. A run
// always completes once started; cancelling ctx does not stop it halfway.
func (s *Synchronizer) Sync(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	memberships := make(map[string][]string)
	for _, g := range s.store.ListGroups(ctx) {
		for _, userID := range g.MemberIDs {
			memberships[userID] = append(memberships[userID], g.ID)
		}
	}

	updated := 0
	for _, u := range s.store.ListUsers(ctx) {
		groups := memberships[u.ID]
		if groups == nil {
			groups = []string{}
		}
		if sameGroups(u.Groups, groups) {
			continue
		}
		err := s.store.SetUserGroups(ctx, u.ID, groups)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted since the listing; nothing to keep in step.
			continue
		}
		if err != nil {
			return fmt.Errorf("sync groups for user %s: %w", u.ID, err)
		}
		updated++
	}
	s.log.Debug().Int("updated", updated).Msg("group membership synchronized")
	return nil
}

func sameGroups(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
