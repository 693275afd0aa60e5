package telegram

import "sync"

// Conversation states for the onboarding flow. A chat is either picking an
// entry from the menu or answering the prompt for the entry it picked.
type convState int

const (
	stateIdle convState = iota
	stateChoosing
	stateAwaitingReply
)

// Menu categories a reply can belong to.
const (
	categoryHandle  = "handle"
	categoryChannel = "channel"
	categoryRole    = "role"
	categoryGuild   = "guild"
)

type session struct {
	state    convState
	category string
}

// sessionStore keeps per-chat conversation state. The state is transient;
// everything durable lives in the subscriber store.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[int64]*session)}
}

// get returns the current state of a chat, defaulting to idle.
func (s *sessionStore) get(chatID int64) session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[chatID]; ok {
		return *sess
	}
	return session{state: stateIdle}
}

// setChoosing puts a chat at the menu.
func (s *sessionStore) setChoosing(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = &session{state: stateChoosing}
}

// setAwaiting marks a chat as answering the prompt for a category.
func (s *sessionStore) setAwaiting(chatID int64, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = &session{state: stateAwaitingReply, category: category}
}

// clear ends the conversation for a chat.
func (s *sessionStore) clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}
