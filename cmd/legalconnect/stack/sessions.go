package stack

import (
	"context"

	"github.com/javajedis/legalconnect-ai/pkg/dotdir"
	"github.com/javajedis/legalconnect-ai/pkg/pipeline"
)

// SessionStore adapts the dotdir session state to the pipeline's
// session lookup. The CLI tracks a single active session on disk.
type SessionStore struct {
	ddm       *dotdir.Manager
	configDir string
}

var _ pipeline.SessionStore = (*SessionStore)(nil)

func NewSessionStore(configDir string) *SessionStore {
	return &SessionStore{
		ddm:       dotdir.NewManager(),
		configDir: configDir,
	}
}

// HasDocuments reports whether the given session is the active local
// session and has uploaded documents.
func (s *SessionStore) HasDocuments(_ context.Context, sessionID string) (bool, error) {
	state, err := s.ddm.LoadSessionState(s.configDir)
	if err != nil {
		return false, err
	}
	if state == nil || state.SessionID != sessionID {
		return false, nil
	}
	return state.HasDocuments(), nil
}
