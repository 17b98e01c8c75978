// Package models defines the core domain models for conversation workflow execution.
package models

import "time"

// Message is an inbound or outbound customer message. Once persisted it is
// immutable except for the consent snapshot fields, which are written exactly
// once by the inbound processor before any workflow runs.
type Message struct {
	ID                    string         `json:"id"`
	BusinessID            string         `json:"business_id"  validate:"required"`
	PhoneNumber           string         `json:"phone_number,omitempty"`
	Email                 string         `json:"email,omitempty"`
	Body                  string         `json:"body"`
	ConversationID        string         `json:"conversation_id,omitempty"`
	IsFirstInConversation bool           `json:"is_first_in_conversation"`
	ResponseToMessageID   *string        `json:"response_to_message_id,omitempty"`
	IsOptedOut            bool           `json:"is_opted_out"`
	OptedOutAt            *time.Time     `json:"opted_out_at,omitempty"`
	RetryAttempt          int            `json:"retry_attempt"`
	ProviderMessageID     string         `json:"provider_message_id,omitempty"`
	ReceivedAt            time.Time      `json:"received_at"`
	Metadata              map[string]any `json:"metadata,omitempty"`
}

// Contact returns the contact address the message belongs to. SMS messages
// carry a phone number, email messages an address; exactly one is set.
func (m *Message) Contact() string {
	if m.PhoneNumber != "" {
		return m.PhoneNumber
	}

	return m.Email
}
