package rooms

import (
	"context"
	"sync"
)

// Store is the capability interface the registry runs on. Implementations
// must serialize all mutations of a given room id, and must not block reads
// of unrelated rooms while one room is being mutated. The in-memory store
// below is the default; a distributed store can be substituted without
// touching the registry or the transfer machine.
type Store interface {
	// Create inserts a new room. Fails with ErrDuplicateName if an active
	// room with the same name exists.
	Create(ctx context.Context, room Room) error

	// Get returns a snapshot of the room, found=false if the id is unknown.
	Get(ctx context.Context, id string) (Room, bool, error)

	// FindByName returns a snapshot of the active room with that name.
	FindByName(ctx context.Context, name string) (Room, bool, error)

	// List returns snapshots of all active rooms.
	List(ctx context.Context) ([]Room, error)

	// Mutate runs fn on the room under the per-room lock. fn receives the
	// live record; returning an error aborts the mutation.
	Mutate(ctx context.Context, id string, fn func(*Room) error) error
}

type memoryEntry struct {
	mu   sync.Mutex
	room Room
}

// MemoryStore keeps all rooms in process memory. The outer RWMutex guards
// only the map and the active-name index; each room carries its own mutex so
// mutations of unrelated rooms proceed concurrently.
//
// Entries are never deleted: an inactive room keeps its id forever, which is
// how the id-never-reused invariant is enforced.
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[string]*memoryEntry
	byName map[string]string // active name -> room id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:  make(map[string]*memoryEntry),
		byName: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, room Room) error {
	if room.ID == "" || room.Name == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.ID]; exists {
		return ErrInvalidArgument
	}
	if _, taken := s.byName[room.Name]; taken {
		return ErrDuplicateName
	}
	if room.Participants == nil {
		room.Participants = make(map[string]Participant)
	}
	s.rooms[room.ID] = &memoryEntry{room: room}
	if room.Active {
		s.byName[room.Name] = room.ID
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Room, bool, error) {
	s.mu.RLock()
	e, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok {
		return Room{}, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.Clone(), true, nil
}

func (s *MemoryStore) FindByName(ctx context.Context, name string) (Room, bool, error) {
	s.mu.RLock()
	id, ok := s.byName[name]
	s.mu.RUnlock()
	if !ok {
		return Room{}, false, nil
	}
	return s.Get(ctx, id)
}

func (s *MemoryStore) List(_ context.Context) ([]Room, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Room, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.room.Active {
			out = append(out, e.room.Clone())
		}
		e.mu.Unlock()
	}
	return out, nil
}

func (s *MemoryStore) Mutate(_ context.Context, id string, fn func(*Room) error) error {
	s.mu.RLock()
	e, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	e.mu.Lock()
	wasActive := e.room.Active
	err := fn(&e.room)
	nowActive := e.room.Active
	e.mu.Unlock()
	if err != nil {
		return err
	}

	// Deactivation frees the name for reuse by future rooms.
	if wasActive && !nowActive {
		s.mu.Lock()
		if cur, ok := s.byName[e.room.Name]; ok && cur == id {
			delete(s.byName, e.room.Name)
		}
		s.mu.Unlock()
	}
	return nil
}
