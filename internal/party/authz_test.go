package party

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsManager(t *testing.T) {
	adminIDs := []string{"admin-1", "admin-2"}

	tests := []struct {
		name      string
		requester Requester
		want      bool
	}{
		{"creator", Requester{ID: "creator-1"}, true},
		{"guild admin", Requester{ID: "someone", IsAdmin: true}, true},
		{"configured admin", Requester{ID: "admin-2"}, true},
		{"regular member", Requester{ID: "someone"}, false},
		{"empty requester", Requester{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsManager(tt.requester, "creator-1", adminIDs))
		})
	}
}

func TestIsManagerNoAdminList(t *testing.T) {
	require.True(t, IsManager(Requester{ID: "creator-1"}, "creator-1", nil))
	require.False(t, IsManager(Requester{ID: "other"}, "creator-1", nil))
}
