package directory

import (
	"context"
	"errors"
	"testing"

	"docshare/internal/store"
	docshare_errors "docshare/pkg/errors"
)

func seedStore() *store.Memory {
	m := store.NewMemory()
	m.Seed(store.TableProfiles,
		store.Row{"id": "u1", "email": "alice@x.com", "full_name": "Alice"},
		store.Row{"id": "u2", "email": "bob@x.com", "full_name": "Bob"},
		store.Row{"id": "u3", "email": "carol@x.com", "full_name": "Carol"},
	)
	m.Seed(store.TableFriendships,
		store.Row{"id": "f1", "requester_id": "u1", "addressee_id": "u2", "status": "accepted"},
		store.Row{"id": "f2", "requester_id": "u3", "addressee_id": "u1", "status": "pending"},
	)
	m.Seed(store.TableGroups,
		store.Row{"id": "g1", "name": "Design"},
		store.Row{"id": "g2", "name": "Ops"},
	)
	m.Seed(store.TableGroupMembers,
		store.Row{"group_id": "g1", "user_id": "u1"},
		store.Row{"group_id": "g2", "user_id": "u2"},
	)
	return m
}

func TestListFriendsResolvesCounterpartForBothSides(t *testing.T) {
	d := New(seedStore())

	friendsOfU1, err := d.ListFriends(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListFriends(u1) failed: %v", err)
	}
	if len(friendsOfU1) != 1 || friendsOfU1[0].ID != "u2" {
		t.Errorf("friends of u1 = %v, want [u2]", friendsOfU1)
	}

	friendsOfU2, err := d.ListFriends(context.Background(), "u2")
	if err != nil {
		t.Fatalf("ListFriends(u2) failed: %v", err)
	}
	if len(friendsOfU2) != 1 || friendsOfU2[0].ID != "u1" {
		t.Errorf("friends of u2 = %v, want [u1]", friendsOfU2)
	}
}

func TestListFriendsIgnoresPending(t *testing.T) {
	d := New(seedStore())

	friends, err := d.ListFriends(context.Background(), "u3")
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(friends) != 0 {
		t.Errorf("pending friendship listed as friend: %v", friends)
	}
}

func TestListGroups(t *testing.T) {
	d := New(seedStore())

	groups, err := d.ListGroups(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "Design" {
		t.Errorf("groups of u1 = %v, want [Design]", groups)
	}
}

func TestListPendingRequestsJoinsRequesterProfile(t *testing.T) {
	d := New(seedStore())

	pending, err := d.ListPendingRequests(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListPendingRequests failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %v, want one request", pending)
	}
	if pending[0].RequestID != "f2" || pending[0].From.FullName != "Carol" {
		t.Errorf("pending[0] = %+v", pending[0])
	}

	// The requester side has no incoming requests.
	none, _ := d.ListPendingRequests(context.Background(), "u3")
	if len(none) != 0 {
		t.Errorf("requester saw incoming requests: %v", none)
	}
}

func TestAcceptRequest(t *testing.T) {
	d := New(seedStore())

	if err := d.AcceptRequest(context.Background(), "f2"); err != nil {
		t.Fatalf("AcceptRequest failed: %v", err)
	}

	friends, _ := d.ListFriends(context.Background(), "u3")
	if len(friends) != 1 || friends[0].ID != "u1" {
		t.Errorf("friends of u3 after accept = %v, want [u1]", friends)
	}
	pending, _ := d.ListPendingRequests(context.Background(), "u1")
	if len(pending) != 0 {
		t.Errorf("request still pending after accept: %v", pending)
	}
}

func TestAcceptRequestUnknownID(t *testing.T) {
	d := New(seedStore())

	err := d.AcceptRequest(context.Background(), "nope")
	if !errors.Is(err, docshare_errors.ErrNotFound) {
		t.Errorf("AcceptRequest on unknown id = %v, want ErrNotFound", err)
	}
}
