package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	sessionFile = "session.json"
)

// SessionState represents the persisted chat session state.
// It carries the active session ID, the conversation turns so far, and the
// documents uploaded into the session, so consecutive CLI invocations share
// one conversation.
type SessionState struct {
	// SessionID is the ID of the active chat session.
	SessionID string `json:"session_id"`

	// Messages is the conversation history in chronological order
	// (oldest first).
	Messages []SessionMessage `json:"messages"`

	// Documents lists the documents uploaded into this session.
	Documents []SessionDocument `json:"documents,omitempty"`
}

// SessionMessage represents a single turn in the session conversation.
type SessionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionDocument records a document uploaded into the session and the
// vector point IDs its chunks were stored under.
type SessionDocument struct {
	DocumentID string   `json:"document_id"`
	Name       string   `json:"name,omitempty"`
	VectorIDs  []string `json:"vector_ids,omitempty"`
}

// HasDocuments reports whether any documents have been uploaded into the session.
func (s *SessionState) HasDocuments() bool {
	return s != nil && len(s.Documents) > 0
}

// LoadSessionState loads the session state from a target .legalconnect/session.json.
// Returns nil, nil if no session state exists (fresh session).
// If overrideDir is non-empty, it is used instead of the default ~/.legalconnect/ location.
func (m *Manager) LoadSessionState(overrideDir string) (*SessionState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, sessionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	state := &SessionState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}

	return state, nil
}

// SaveSession persists the session state to a target .legalconnect/session.json.
func (m *Manager) SaveSession(state *SessionState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	path := filepath.Join(dir, sessionFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// ClearSession removes the session state file.
// This resets the state so the next chat starts a new session.
// If overrideDir is non-empty, it is used instead of the default ~/.legalconnect/ location.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearSession(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, sessionFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session state: %w", err)
	}

	return nil
}
