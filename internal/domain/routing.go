package domain

import "time"

// ConversationReference identifies a single conversational endpoint: an
// end-user, a bot instance, or an aggregation channel watched by human agents.
type ConversationReference struct {
	// ID is the opaque conversation identifier, unique within its table.
	ID string `json:"id"`
	// IsBot marks a bot-owned endpoint; it decides whether the reference is
	// routed to the bot-instances table or the users table.
	IsBot      bool   `json:"isBot"`
	ChannelID  string `json:"channelId,omitempty"`
	ServiceURL string `json:"serviceUrl,omitempty"`
}

// ConnectionRequest is a pending, unfulfilled request by one endpoint to be
// connected to another party. At most one active request exists per requestor.
type ConnectionRequest struct {
	Requestor ConversationReference `json:"requestor"`
	CreatedAt time.Time             `json:"createdAt"`
}

// Connection is an established pairing of two endpoints, e.g. a user and a
// bot instance, or a user and a human agent.
type Connection struct {
	Ref1 ConversationReference `json:"ref1"`
	Ref2 ConversationReference `json:"ref2"`
}
