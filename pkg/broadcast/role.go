// Package broadcast runs the two halves of a one-to-many broadcast: a
// publisher that turns operator input lines into frames, and a subscriber
// that decodes and reports every frame it receives.
package broadcast

import "strings"

// Role is the part a process plays in the broadcast.
type Role int

const (
	RolePublisher Role = iota
	RoleSubscriber
)

// SelectRole picks the subscriber role when a remote address is given and the
// publisher role otherwise.
func SelectRole(address string) Role {
	if strings.TrimSpace(address) == "" {
		return RolePublisher
	}
	return RoleSubscriber
}

func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "Server"
	case RoleSubscriber:
		return "Client"
	default:
		return "Unknown"
	}
}
