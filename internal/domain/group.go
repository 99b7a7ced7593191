package domain

// Group represents the groups table. Groups are created externally;
// this core only reads them.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupMember is the (group, user) membership edge. Membership is
// binary, no roles.
type GroupMember struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
}
