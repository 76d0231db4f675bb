package core

// ConversationState is the unit persisted per checkpoint: the ordered message
// log. RecallMemories is recomputed at the start of every turn and is never
// serialized.
type ConversationState struct {
	Messages       []Content `json:"messages"`
	RecallMemories []string  `json:"-"`
}

// NewConversationState returns an empty state.
func NewConversationState() *ConversationState {
	return &ConversationState{Messages: []Content{}}
}

// Append adds messages to the end of the log.
func (s *ConversationState) Append(msgs ...Content) {
	s.Messages = append(s.Messages, msgs...)
}

// Len returns the number of messages in the log.
func (s *ConversationState) Len() int { return len(s.Messages) }

// Last returns the final message, if any.
func (s *ConversationState) Last() (Content, bool) {
	if len(s.Messages) == 0 {
		return Content{}, false
	}

	return s.Messages[len(s.Messages)-1], true
}

// Roles lists the role of each message in order.
func (s *ConversationState) Roles() []string {
	roles := make([]string, len(s.Messages))
	for i, m := range s.Messages {
		roles[i] = m.Role
	}

	return roles
}

// Clone returns a deep copy safe for independent mutation.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return NewConversationState()
	}

	clone := &ConversationState{
		Messages:       make([]Content, len(s.Messages)),
		RecallMemories: append([]string(nil), s.RecallMemories...),
	}

	for i, m := range s.Messages {
		clone.Messages[i] = m.Clone()
	}

	return clone
}
