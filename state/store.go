// Package state provides the process-wide key/value store shared by agents.
//
// Three namespaces are kept: global state, per-agent context and per-task
// state. Every entry wraps its value with an update timestamp. Each mutation
// serializes the whole store to a single JSON document (write-through
// snapshot); persistence failures are logged and swallowed so the in-memory
// store stays authoritative and agent operations never block on disk I/O.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/auditmesh/logging"
)

// DefaultPath is the snapshot location used when none is configured.
const DefaultPath = "data/state.json"

// Entry wraps a stored value with its last update time.
type Entry struct {
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type taskEntry struct {
	State     map[string]any `json:"state"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type snapshot struct {
	State         map[string]Entry            `json:"state"`
	AgentContexts map[string]map[string]Entry `json:"agent_contexts"`
	TaskStates    map[string]taskEntry        `json:"task_states"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// Options configures a Store.
type Options struct {
	// Path locates the JSON snapshot document.
	Path string
	// Logger receives persistence failures and lifecycle events.
	Logger logging.Logger
}

// Store is the shared state store. A single mutex guards all namespaces.
type Store struct {
	mu            sync.Mutex
	state         map[string]Entry
	agentContexts map[string]map[string]Entry
	taskStates    map[string]taskEntry
	path          string
	logger        logging.Logger
}

// New constructs a Store, loading a prior snapshot from disk when one
// exists. A load failure is logged and the store starts empty.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{
		Path:   DefaultPath,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{
		state:         make(map[string]Entry),
		agentContexts: make(map[string]map[string]Entry),
		taskStates:    make(map[string]taskEntry),
		path:          opts.Path,
		logger:        opts.Logger,
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("failed to create state directory", "path", s.path, "error", err.Error())
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to load state", "path", s.path, "error", err.Error())
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("failed to decode state snapshot", "path", s.path, "error", err.Error())
		return
	}
	if snap.State != nil {
		s.state = snap.State
	}
	if snap.AgentContexts != nil {
		s.agentContexts = snap.AgentContexts
	}
	if snap.TaskStates != nil {
		s.taskStates = snap.TaskStates
	}
	s.logger.Info("state loaded", "path", s.path)
}

// saveLocked serializes the whole store. Failures are logged, never
// returned; the in-memory state remains correct. Caller holds the lock.
func (s *Store) saveLocked() {
	snap := snapshot{
		State:         s.state,
		AgentContexts: s.agentContexts,
		TaskStates:    s.taskStates,
		UpdatedAt:     time.Now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode state snapshot", "error", err.Error())
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Error("failed to save state", "path", s.path, "error", err.Error())
	}
}

// Set stores a global state value.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = Entry{Value: value, UpdatedAt: time.Now().UTC()}
	s.saveLocked()
}

// Get returns a global state value, or def when the key is absent.
func (s *Store) Get(key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.state[key]; ok {
		return e.Value
	}
	return def
}

// Delete removes a global state value, reporting whether it existed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state[key]; !ok {
		return false
	}
	delete(s.state, key)
	s.saveLocked()
	return true
}

// SetAgentContext stores a context value for one agent.
func (s *Store) SetAgentContext(agentID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.agentContexts[agentID]
	if !ok {
		ctx = make(map[string]Entry)
		s.agentContexts[agentID] = ctx
	}
	ctx[key] = Entry{Value: value, UpdatedAt: time.Now().UTC()}
	s.saveLocked()
}

// GetAgentContext returns a context value for one agent, or def when absent.
func (s *Store) GetAgentContext(agentID, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx, ok := s.agentContexts[agentID]; ok {
		if e, ok := ctx[key]; ok {
			return e.Value
		}
	}
	return def
}

// ClearAgentContext removes all context for one agent.
func (s *Store) ClearAgentContext(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agentContexts[agentID]; !ok {
		return
	}
	delete(s.agentContexts, agentID)
	s.saveLocked()
}

// SetTaskState stores an arbitrary structured snapshot for one task.
func (s *Store) SetTaskState(taskID string, st map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]any, len(st))
	for k, v := range st {
		cp[k] = v
	}
	s.taskStates[taskID] = taskEntry{State: cp, UpdatedAt: time.Now().UTC()}
	s.saveLocked()
}

// GetTaskState returns the stored snapshot for one task.
func (s *Store) GetTaskState(taskID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.taskStates[taskID]
	if !ok {
		return nil, false
	}
	cp := make(map[string]any, len(e.State))
	for k, v := range e.State {
		cp[k] = v
	}
	return cp, true
}

// All returns every global state value keyed by state key.
func (s *Store) All() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.state))
	for k, e := range s.state {
		out[k] = e.Value
	}
	return out
}

// Clear empties every namespace.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make(map[string]Entry)
	s.agentContexts = make(map[string]map[string]Entry)
	s.taskStates = make(map[string]taskEntry)
	s.saveLocked()
	s.logger.Info("all state cleared")
}
