package session

import (
	"time"

	"github.com/google/uuid"
)

// Time is a single recorded solve inside a session.
type Time struct {
	Millis     int64  `json:"millis"`
	RecordedAt int64  `json:"recorded_at"`
	Scramble   string `json:"scramble"`
}

// Session groups the solve times of one account under a name.
type Session struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Times     []Time    `json:"times"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
