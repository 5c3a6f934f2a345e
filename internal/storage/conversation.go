package storage

import (
	"time"

	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	// MaxPersistedMessages caps how many trailing messages are written to disk.
	MaxPersistedMessages = 100
	// MaxPersistedContent caps each persisted message's content length.
	MaxPersistedContent = 4000

	conversationsDir = "conversations"
)

// SaveConversation persists the tail of a conversation. The in-memory history
// is never modified; only the on-disk copy is capped and truncated.
func (s *Store) SaveConversation(sessionID, model string, compacted bool, messages []types.Message) error {
	tail := messages
	if len(tail) > MaxPersistedMessages {
		tail = tail[len(tail)-MaxPersistedMessages:]
	}

	persisted := make([]types.Message, len(tail))
	for i, m := range tail {
		if len(m.Content) > MaxPersistedContent {
			m.Content = m.Content[:MaxPersistedContent]
		}
		persisted[i] = m
	}

	rec := types.ConversationRecord{
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
		MessageCount: len(messages),
		Metadata:     types.ConversationMetadata{Model: model, Compacted: compacted},
		Messages:     persisted,
	}
	return s.WriteJSON(rec, conversationsDir, SanitizeID(sessionID)+".json")
}

// LoadConversation reads a persisted conversation record.
func (s *Store) LoadConversation(sessionID string) (*types.ConversationRecord, error) {
	var rec types.ConversationRecord
	if err := s.ReadJSON(&rec, conversationsDir, SanitizeID(sessionID)+".json"); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteConversation removes a persisted conversation.
func (s *Store) DeleteConversation(sessionID string) error {
	return s.Delete(conversationsDir, SanitizeID(sessionID)+".json")
}

// ListConversations returns the ids of all persisted conversations.
func (s *Store) ListConversations() ([]string, error) {
	return s.List(conversationsDir, ".json")
}
