// Package server is the authoritative game loop. One goroutine owns every
// piece of mutable state (the session room, the game, pending timers) and
// consumes a single queue merging network events, self-posted timer events
// and status queries. Shutdown is the loop's context, serviced ahead of
// queued events.
package server

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/lemunozm/asciiarena-sub000/internal/config"
	"github.com/lemunozm/asciiarena-sub000/internal/game"
	"github.com/lemunozm/asciiarena-sub000/internal/session"
	"github.com/lemunozm/asciiarena-sub000/internal/transport"
)

// VersionTag is the server's own protocol version.
const VersionTag = "0.1.0"

// Sender is the slice of the transport layer the loop needs. Satisfied by
// *transport.Network; tests substitute a recorder.
type Sender interface {
	Send(transport.Endpoint, []byte) error
	Remove(transport.Endpoint)
	UdpPort() int
}

// Event is the closed set of things the loop reacts to.
type Event interface{ isServerEvent() }

// FromNetwork wraps a transport event into the loop's queue.
type FromNetwork struct{ Event transport.Event }

// createGame fires after the login that filled the room.
type createGame struct{}

// startArena fires when the arena-countdown deadline elapses.
type startArena struct{}

// gameStep is the fixed-cadence simulation tick.
type gameStep struct{}

// StatusQuery asks the loop for a race-free state snapshot.
type StatusQuery struct{ Reply chan Status }

func (FromNetwork) isServerEvent() {}
func (createGame) isServerEvent()  {}
func (startArena) isServerEvent()  {}
func (gameStep) isServerEvent()    {}
func (StatusQuery) isServerEvent() {}

// Status is the snapshot handed to status queries.
type Status struct {
	Players      []string       `json:"players"`
	Points       map[string]int `json:"points,omitempty"`
	Capacity     int            `json:"capacity"`
	GameRunning  bool           `json:"game_running"`
	ArenaNumber  int            `json:"arena_number"`
	WinnerPoints int            `json:"winner_points"`
}

type Server struct {
	cfg    config.Config
	net    Sender
	logger *zap.Logger
	inbox  chan Event

	room *session.Room
	game *game.Game
	rng  *rand.Rand

	// bindings maps a player name to the entity it controls in the
	// current arena. Rebuilt on every arena start.
	bindings map[string]game.EntityID

	versioned   map[transport.Endpoint]bool
	subscribers map[transport.Endpoint]bool

	// waitingArena guards the one-shot countdown timer: a stale timer
	// event arriving after a reset is ignored.
	waitingArena bool
	waitDeadline time.Time
	arenaScored  bool
}

func New(cfg config.Config, net Sender, logger *zap.Logger) *Server {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Server{
		cfg:         cfg,
		net:         net,
		logger:      logger,
		inbox:       make(chan Event, 256),
		room:        session.NewRoom(cfg.Capacity, rng, logger),
		rng:         rng,
		bindings:    make(map[string]game.EntityID),
		versioned:   make(map[transport.Endpoint]bool),
		subscribers: make(map[transport.Endpoint]bool),
	}
}

// Inbox accepts events from the transport pump, timers and the HTTP API.
func (s *Server) Inbox() chan<- Event { return s.inbox }

// Pump forwards transport events into the loop's queue. Run it as its own
// goroutine; it returns when the events channel closes.
func (s *Server) Pump(events <-chan transport.Event) {
	for ev := range events {
		s.inbox <- FromNetwork{Event: ev}
	}
}

// Run consumes events until ctx is cancelled. The nested select drains the
// cancellation token ahead of ordinary queued events.
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("server loop started",
		zap.Int("capacity", s.cfg.Capacity),
		zap.Int("winner_points", s.cfg.WinnerPoints))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("server loop stopped")
			return
		default:
		}
		select {
		case <-ctx.Done():
			s.logger.Info("server loop stopped")
			return
		case ev := <-s.inbox:
			s.dispatch(ev)
		}
	}
}

func (s *Server) dispatch(ev Event) {
	switch e := ev.(type) {
	case FromNetwork:
		s.handleNetwork(e.Event)
	case createGame:
		s.handleCreateGame()
	case startArena:
		s.handleStartArena()
	case gameStep:
		s.handleGameStep()
	case StatusQuery:
		e.Reply <- s.status()
	default:
		s.logger.Error("unknown event in server loop")
	}
}

func (s *Server) status() Status {
	st := Status{
		Players:      s.room.Names(),
		Capacity:     s.cfg.Capacity,
		WinnerPoints: s.cfg.WinnerPoints,
	}
	if s.game != nil {
		st.GameRunning = true
		st.ArenaNumber = s.game.ArenaNumber()
		points := make(map[string]int, len(s.game.Points()))
		for p, pts := range s.game.Points() {
			points[p] = pts
		}
		st.Points = points
	}
	return st
}

// schedule posts ev back into the queue at-or-after d from now, exactly once.
func (s *Server) schedule(d time.Duration, ev Event) {
	time.AfterFunc(d, func() { s.inbox <- ev })
}
