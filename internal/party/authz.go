package party

// Requester identifies who is attempting a management action
type Requester struct {
	ID      string
	Name    string
	IsAdmin bool // holds the platform's administrator capability in the guild
}

// IsManager grants management rights to the event creator, guild
// administrators, and the configured admin list. No other delegation
// mechanism exists.
func IsManager(requester Requester, creatorID string, adminIDs []string) bool {
	if requester.ID == creatorID {
		return true
	}
	if requester.IsAdmin {
		return true
	}
	for _, id := range adminIDs {
		if id == requester.ID {
			return true
		}
	}
	return false
}
