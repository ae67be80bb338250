package models

import id "maestro/pkg/domain"

// Scope optionally binds records to the conversation and AI request they were
// created for. Both fields are independent filters; a nil field matches any
// value. Reversal never filters by scope because tokens are globally unique.
type Scope struct {
	ConversationID *id.ConversationID
	AIRequestID    *id.AIRequestID
}

// ForConversation builds a scope bound to one conversation.
func ForConversation(conversationID id.ConversationID) Scope {
	return Scope{ConversationID: &conversationID}
}

// Matches reports whether a record falls inside the scope.
func (s Scope) Matches(r *Record) bool {
	if s.ConversationID != nil {
		if r.ConversationID == nil || *r.ConversationID != *s.ConversationID {
			return false
		}
	}
	if s.AIRequestID != nil {
		if r.AIRequestID == nil || *r.AIRequestID != *s.AIRequestID {
			return false
		}
	}
	return true
}
