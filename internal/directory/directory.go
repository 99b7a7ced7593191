package directory

import (
	"context"
	"fmt"

	"docshare/internal/domain"
	"docshare/internal/store"
	docshare_errors "docshare/pkg/errors"
)

// Directory loads and mutates friendships and group memberships for
// the current user. It keeps no cache; callers re-run the list
// operations to observe changes.
type Directory struct {
	store store.Client
}

func New(client store.Client) *Directory {
	return &Directory{store: client}
}

// ListFriends returns the profiles linked to userID by an accepted
// friendship, resolved to the other party regardless of which side
// initiated.
func (d *Directory) ListFriends(ctx context.Context, userID string) ([]domain.Profile, error) {
	rows, err := d.store.Query(ctx, store.TableFriendships, store.Filter{
		All: []store.Cond{store.Eq("status", domain.FriendshipAccepted)},
		Any: []store.Cond{store.Eq("requester_id", userID), store.Eq("addressee_id", userID)},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: list friends: %v", docshare_errors.ErrStore, err)
	}

	counterparts := make([]string, 0, len(rows))
	for _, row := range rows {
		counterparts = append(counterparts, store.DecodeFriendship(row).CounterpartID(userID))
	}
	if len(counterparts) == 0 {
		return nil, nil
	}

	profiles, err := d.profilesByID(ctx, counterparts)
	if err != nil {
		return nil, err
	}

	friends := make([]domain.Profile, 0, len(counterparts))
	for _, id := range counterparts {
		if p, ok := profiles[id]; ok {
			friends = append(friends, p)
		}
	}
	return friends, nil
}

// ListGroups returns the groups userID is a member of.
func (d *Directory) ListGroups(ctx context.Context, userID string) ([]domain.Group, error) {
	memberRows, err := d.store.Query(ctx, store.TableGroupMembers, store.Filter{
		All: []store.Cond{store.Eq("user_id", userID)},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: list groups: %v", docshare_errors.ErrStore, err)
	}
	if len(memberRows) == 0 {
		return nil, nil
	}

	groupIDs := make([]string, 0, len(memberRows))
	for _, row := range memberRows {
		groupIDs = append(groupIDs, row.String("group_id"))
	}

	groupRows, err := d.store.Query(ctx, store.TableGroups, store.Filter{
		All: []store.Cond{store.In("id", groupIDs)},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: list groups: %v", docshare_errors.ErrStore, err)
	}

	groups := make([]domain.Group, 0, len(groupRows))
	for _, row := range groupRows {
		groups = append(groups, store.DecodeGroup(row))
	}
	return groups, nil
}

// ListPendingRequests returns the pending friendships addressed to
// userID, joined to the requester's profile.
func (d *Directory) ListPendingRequests(ctx context.Context, userID string) ([]domain.PendingRequest, error) {
	rows, err := d.store.Query(ctx, store.TableFriendships, store.Filter{
		All: []store.Cond{
			store.Eq("addressee_id", userID),
			store.Eq("status", domain.FriendshipPending),
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: list pending requests: %v", docshare_errors.ErrStore, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	requesters := make([]string, 0, len(rows))
	for _, row := range rows {
		requesters = append(requesters, row.String("requester_id"))
	}
	profiles, err := d.profilesByID(ctx, requesters)
	if err != nil {
		return nil, err
	}

	requests := make([]domain.PendingRequest, 0, len(rows))
	for _, row := range rows {
		f := store.DecodeFriendship(row)
		requests = append(requests, domain.PendingRequest{
			RequestID: f.ID,
			From:      profiles[f.RequesterID],
		})
	}
	return requests, nil
}

// AcceptRequest transitions the named friendship to accepted. Callers
// re-run ListFriends/ListPendingRequests to observe the change.
func (d *Directory) AcceptRequest(ctx context.Context, requestID string) error {
	rows, err := d.store.Query(ctx, store.TableFriendships, store.Filter{
		All: []store.Cond{store.Eq("id", requestID)},
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: accept request: %v", docshare_errors.ErrStore, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: friend request %s", docshare_errors.ErrNotFound, requestID)
	}

	err = d.store.Update(ctx, store.TableFriendships,
		store.Filter{All: []store.Cond{store.Eq("id", requestID)}},
		store.Row{"status": domain.FriendshipAccepted})
	if err != nil {
		return fmt.Errorf("%w: accept request: %v", docshare_errors.ErrStore, err)
	}
	return nil
}

func (d *Directory) profilesByID(ctx context.Context, ids []string) (map[string]domain.Profile, error) {
	rows, err := d.store.Query(ctx, store.TableProfiles, store.Filter{
		All: []store.Cond{store.In("id", ids)},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load profiles: %v", docshare_errors.ErrStore, err)
	}
	profiles := make(map[string]domain.Profile, len(rows))
	for _, row := range rows {
		p := store.DecodeProfile(row)
		profiles[p.ID] = p
	}
	return profiles, nil
}
