package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectRole(t *testing.T) {
	testCases := []struct {
		address string
		want    Role
	}{
		{"", RolePublisher},
		{"   ", RolePublisher},
		{"\t\n", RolePublisher},
		{"127.0.0.1", RoleSubscriber},
		{"broker.example.com", RoleSubscriber},
		{"::1", RoleSubscriber},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, SelectRole(tc.address), "address %q", tc.address)
	}
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "Server", RolePublisher.String())
	assert.Equal(t, "Client", RoleSubscriber.String())
	assert.Equal(t, "Unknown", Role(42).String())
}
