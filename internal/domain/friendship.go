package domain

// Friendship status values. The only modeled transition is
// pending -> accepted; there is no decline path.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

// Friendship is a directed request/acceptance edge between two profiles.
// At most one friendship exists per unordered pair in a non-terminal state.
type Friendship struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
	AddresseeID string `json:"addressee_id"`
	Status      string `json:"status"`
}

// CounterpartID resolves the other party of the edge regardless of
// which side initiated the request.
func (f Friendship) CounterpartID(userID string) string {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// PendingRequest is a pending friendship joined to the requester's profile.
type PendingRequest struct {
	RequestID string  `json:"request_id"`
	From      Profile `json:"from"`
}
