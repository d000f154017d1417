package domain

import "time"

// ContactMessage is one row of the append-only contact_messages collection.
// Pure insert, no state machine.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
