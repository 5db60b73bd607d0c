package model

import (
	"time"

	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// Project represents a project owning releases. Only the membership list
// matters to the coordinator; everything else about projects is managed
// elsewhere.
type Project struct {
	ID        types.ProjectID
	Name      string
	MemberIDs []types.UserID
	CreatedAt time.Time
}

// HasMember reports whether the given user is a member of the project
func (p *Project) HasMember(userID types.UserID) bool {
	for _, id := range p.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// User represents a tester identity consumed from the auth boundary
type User struct {
	ID    types.UserID
	Name  string
	Email string
}
