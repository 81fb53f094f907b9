package rooms

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Resolver supplies options for game ids the registry has no reservation for,
// e.g. tournament matches owned by the tournament manager.
type Resolver func(id int) (Options, bool)

// RoomInfo is returned by the API for the room list.
type RoomInfo struct {
	ID      int    `json:"id"`
	Kind    Kind   `json:"kind"`
	Status  Status `json:"status"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
}

// Registry holds rooms by game id. Rooms are created lazily on first connect and
// removed once they close.
type Registry struct {
	mu       sync.Mutex
	rooms    map[int]*Room
	pending  map[int]Options
	nextID   atomic.Int64
	resolver Resolver

	cfg      Config
	reporter Reporter
	logger   *slog.Logger
}

func NewRegistry(cfg Config, reporter Reporter, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:    make(map[int]*Room),
		pending:  make(map[int]Options),
		cfg:      cfg.withDefaults(),
		reporter: reporter,
		logger:   logger.With(slog.String("component", "rooms")),
	}
}

// SetResolver installs the fallback used by Acquire for unreserved ids.
func (g *Registry) SetResolver(fn Resolver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolver = fn
}

// AllocateID returns a fresh game id. It never takes the registry lock.
func (g *Registry) AllocateID() int {
	return int(g.nextID.Add(1))
}

// Reserve records a room to be created when its first participant connects.
func (g *Registry) Reserve(opts Options) (int, error) {
	if err := opts.validate(); err != nil {
		return 0, err
	}
	if opts.ID == 0 {
		opts.ID = g.AllocateID()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[opts.ID]; ok {
		return 0, ErrRoomAlreadyTaken
	}
	if _, ok := g.pending[opts.ID]; ok {
		return 0, ErrRoomAlreadyTaken
	}
	g.pending[opts.ID] = opts
	g.logger.Info("game reserved", slog.Int("game_id", opts.ID), slog.String("kind", string(opts.Kind)))
	return opts.ID, nil
}

func (g *Registry) Get(id int) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	return r, ok
}

// Acquire returns the live room for id, creating and starting it from a reservation
// or the resolver when needed.
func (g *Registry) Acquire(id int) (*Room, error) {
	g.mu.Lock()
	if r, ok := g.rooms[id]; ok {
		g.mu.Unlock()
		return r, nil
	}
	opts, ok := g.pending[id]
	resolver := g.resolver
	g.mu.Unlock()

	// Резолвер берёт блокировку менеджера турниров, поэтому вызываем его без своей.
	if !ok && resolver != nil {
		opts, ok = resolver(id)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRoomNotFound, id)
	}
	opts.ID = id
	if err := opts.validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if r, exists := g.rooms[id]; exists {
		g.mu.Unlock()
		return r, nil
	}
	delete(g.pending, id)
	onClosed := opts.OnClosed
	opts.OnClosed = func(roomID int) {
		g.remove(roomID)
		if onClosed != nil {
			onClosed(roomID)
		}
	}
	r := newRoom(opts, g.cfg, g.reporter, g.logger)
	g.rooms[id] = r
	g.mu.Unlock()

	r.Start()
	g.logger.Info("game room created", slog.Int("game_id", id), slog.String("kind", string(opts.Kind)))
	return r, nil
}

// Cancel ends a live room, or drops a reservation nobody has claimed yet.
func (g *Registry) Cancel(id int, reason string) {
	g.mu.Lock()
	r, ok := g.rooms[id]
	if !ok {
		delete(g.pending, id)
	}
	g.mu.Unlock()

	if ok {
		r.Cancel(reason)
	}
}

func (g *Registry) remove(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, id)
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// List returns all live rooms ordered by id.
func (g *Registry) List() []RoomInfo {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.Unlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomInfo{
			ID:      r.opts.ID,
			Kind:    r.opts.Kind,
			Status:  r.Status(),
			Player1: r.opts.Player1.ID,
			Player2: r.opts.Player2.ID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown cleans up every live room.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for id, r := range g.rooms {
		rooms = append(rooms, r)
		delete(g.rooms, id)
	}
	g.pending = make(map[int]Options)
	g.mu.Unlock()

	for _, r := range rooms {
		r.Cleanup()
	}
}
