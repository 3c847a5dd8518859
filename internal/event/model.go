package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a competition entry. Moderators and participants are held as id
// lists only; role scopes elsewhere reference events by id as well.
type Event struct {
	ID           uuid.UUID   `json:"id"`
	CreatorID    uuid.UUID   `json:"creator_id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Date         time.Time   `json:"date"`
	IsPrivate    bool        `json:"is_private"`
	Moderators   []uuid.UUID `json:"moderators"`
	Participants []uuid.UUID `json:"participants"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (e Event) IsModerator(accountID uuid.UUID) bool {
	for _, id := range e.Moderators {
		if id == accountID {
			return true
		}
	}
	return false
}
