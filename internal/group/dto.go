package group

// CreateGroupRequest is the body of POST /groups
type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AddMemberRequest is the body of POST /groups/{id}/members
type AddMemberRequest struct {
	UserID string `json:"userId"`
}

// GroupWithMembers is a group plus its current member list.
type GroupWithMembers struct {
	Group
	Members []*Member `json:"members"`
}
