package entity

import (
	"strings"
	"time"
)

// approverRoleKeywords mark a role as able to approve requests
var approverRoleKeywords = []string{"manager", "director", "supervisor", "经理", "总监", "主管"}

// User is a requester or approver in the directory
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Department string    `json:"department"`
	LarkOpenID string    `json:"lark_open_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsApprover reports whether the user's role qualifies them as an approver
func (u *User) IsApprover() bool {
	role := strings.ToLower(u.Role)
	for _, kw := range approverRoleKeywords {
		if strings.Contains(role, kw) {
			return true
		}
	}
	return false
}
