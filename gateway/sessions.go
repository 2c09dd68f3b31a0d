package gateway

import (
	"sort"
	"sync"
)

// SessionTable records which room each connection is bound to. A connection
// is bound to at most one room.
type SessionTable struct {
	mu     sync.RWMutex
	byConn map[string]string
	byRoom map[string]map[string]struct{}
}

func NewSessionTable() *SessionTable {
	return &SessionTable{
		byConn: make(map[string]string),
		byRoom: make(map[string]map[string]struct{}),
	}
}

// Bind attaches connID to roomID, replacing any previous binding.
func (s *SessionTable) Bind(connID, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbindLocked(connID)
	s.byConn[connID] = roomID
	members, ok := s.byRoom[roomID]
	if !ok {
		members = make(map[string]struct{})
		s.byRoom[roomID] = members
	}
	members[connID] = struct{}{}
}

// Unbind detaches connID and returns the room it was bound to.
func (s *SessionTable) Unbind(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unbindLocked(connID)
}

func (s *SessionTable) unbindLocked(connID string) (string, bool) {
	roomID, ok := s.byConn[connID]
	if !ok {
		return "", false
	}
	delete(s.byConn, connID)
	if members := s.byRoom[roomID]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(s.byRoom, roomID)
		}
	}
	return roomID, true
}

func (s *SessionTable) Room(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roomID, ok := s.byConn[connID]
	return roomID, ok
}

// Members lists the connections bound to roomID in a stable order.
func (s *SessionTable) Members(roomID string) []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.byRoom[roomID]))
	for id := range s.byRoom[roomID] {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (s *SessionTable) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byConn)
}
