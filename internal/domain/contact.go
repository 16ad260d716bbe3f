package domain

import "time"

// ContactMessage is a contact-form submission forwarded to the outbound webhook.
type ContactMessage struct {
	Name       string    `json:"name" validate:"required,max=120"`
	Email      string    `json:"email" validate:"required,email"`
	Subject    string    `json:"subject" validate:"max=200"`
	Message    string    `json:"message" validate:"required,max=5000"`
	ReceivedAt time.Time `json:"received_at"`
}
