package publishers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-user-fetcher/internal/domain"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/result"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Event is the payload published after every fetch.
type Event struct {
	Outcome     string        `json:"outcome"`
	Message     string        `json:"message,omitempty"`
	Endpoint    string        `json:"endpoint"`
	Users       []domain.User `json:"users,omitempty"`
	NewUserIDs  []int         `json:"new_user_ids,omitempty"`
	CollectedAt time.Time     `json:"collected_at"`
}

// NewEvent describes a fetch result. newUserIDs lists ids not reported before.
func NewEvent(endpoint string, res result.Result[[]domain.User], newUserIDs []int) Event {
	evt := Event{
		Endpoint:    endpoint,
		CollectedAt: time.Now().UTC(),
	}
	res.Match(
		func(users []domain.User) {
			evt.Outcome = OutcomeSuccess
			evt.Users = users
			evt.NewUserIDs = newUserIDs
		},
		func(msg string) {
			evt.Outcome = OutcomeError
			evt.Message = msg
		},
	)
	return evt
}

// attributes are the routing attributes sent alongside the body on queue/topic sinks.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"outcome":  e.Outcome,
		"endpoint": e.Endpoint,
	}
}

func (e Event) payload() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return b, nil
}
