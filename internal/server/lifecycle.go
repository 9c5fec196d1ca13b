package server

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lemunozm/asciiarena-sub000/internal/game"
	"github.com/lemunozm/asciiarena-sub000/internal/protocol"
)

// handleCreateGame fires right after the login that filled the room. The
// guards make a stale event harmless: a logout may have freed a slot in the
// meantime.
func (s *Server) handleCreateGame() {
	if s.game != nil || s.room.Len() < s.cfg.Capacity {
		return
	}
	s.game = game.NewGame(s.roster(), s.cfg.WinnerPoints, s.cfg.MapWidth, s.cfg.MapHeight, s.rng)
	s.logger.Info("game created", zap.Strings("players", s.roster()))
	s.broadcast(s.room.SafeEndpoints(), protocol.MsgStartGame, protocol.StartGame{
		Players: s.roster(),
		Points:  s.game.Points(),
	})
	s.scheduleArenaWait()
}

// scheduleArenaWait starts the arena countdown: broadcast the wait duration
// and post the one-shot start-arena timer.
func (s *Server) scheduleArenaWait() {
	s.waitingArena = true
	s.waitDeadline = time.Now().Add(s.cfg.ArenaWait)
	s.broadcast(s.room.SafeEndpoints(), protocol.MsgWaitArena, protocol.WaitArena{
		Millis: s.cfg.ArenaWait.Milliseconds(),
	})
	s.schedule(s.cfg.ArenaWait, startArena{})
}

// handleStartArena fires when the countdown elapses. A timer surviving a
// game reset finds the guards and dies quietly.
func (s *Server) handleStartArena() {
	if s.game == nil || !s.waitingArena {
		s.logger.Debug("stale arena countdown ignored")
		return
	}
	s.waitingArena = false
	s.arenaScored = false

	arena := s.game.StartArena()
	s.bindings = make(map[string]game.EntityID, len(arena.Entities))
	for _, e := range arena.Entities {
		s.bindings[e.Player] = e.ID
	}
	s.logger.Info("arena started",
		zap.Int("number", arena.Number), zap.Int("entities", len(arena.Entities)))
	s.broadcast(s.room.SafeEndpoints(), protocol.MsgStartArena, s.startArenaMessage(arena))
	s.schedule(s.cfg.TickInterval, gameStep{})
}

func (s *Server) startArenaMessage(arena *game.Arena) protocol.StartArena {
	bindings := make([]protocol.EntityBinding, 0, len(arena.Entities))
	for _, e := range arena.Entities {
		bindings = append(bindings, protocol.EntityBinding{
			Player:   e.Player,
			EntityID: int(e.ID),
		})
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Player < bindings[j].Player })
	return protocol.StartArena{
		Number:    arena.Number,
		Bindings:  bindings,
		MapWidth:  arena.Width,
		MapHeight: arena.Height,
	}
}

// handleGameStep advances the simulation one tick, broadcasts the frame on
// the fastest available endpoints, and drives the arena/game transitions.
func (s *Server) handleGameStep() {
	if s.game == nil {
		return
	}
	arena := s.game.Arena()
	if arena == nil || s.arenaScored {
		return
	}

	arena.Update()
	s.broadcast(s.room.FasterEndpoints(), protocol.MsgFrame, s.frameMessage(arena))

	if !arena.Finished() {
		s.schedule(s.cfg.TickInterval, gameStep{})
		return
	}

	s.arenaScored = true
	s.game.ScoreArena()
	s.logger.Info("arena finished",
		zap.Int("number", arena.Number), zap.Any("points", s.game.Points()))
	s.broadcast(s.room.SafeEndpoints(), protocol.MsgPointsUpdated, protocol.PointsUpdated{
		Points: s.game.Points(),
	})

	if s.game.HasWinner() {
		s.finishGame()
		return
	}
	s.scheduleArenaWait()
}

// finishGame broadcasts the end of the game and resets everything except
// the info subscribers, which survive so clients observe the empty roster.
func (s *Server) finishGame() {
	s.logger.Info("game finished", zap.Any("points", s.game.Points()))
	s.broadcast(s.room.SafeEndpoints(), protocol.MsgFinishGame, protocol.FinishGame{})
	s.game = nil
	s.bindings = make(map[string]game.EntityID)
	s.waitingArena = false
	s.room.Clear()
	s.broadcastRoster()
}

func (s *Server) frameMessage(arena *game.Arena) protocol.Frame {
	frame := protocol.Frame{
		Entities: make([]protocol.EntityFrame, 0, len(arena.Entities)),
		Spells:   make([]protocol.SpellFrame, 0, len(arena.Spells)),
	}
	for _, e := range arena.Entities {
		frame.Entities = append(frame.Entities, protocol.EntityFrame{
			ID:        int(e.ID),
			Player:    e.Player,
			X:         e.Pos.X,
			Y:         e.Pos.Y,
			Health:    e.Health,
			Energy:    e.Energy,
			Direction: protocol.Direction(e.Direction),
		})
	}
	for _, sp := range arena.Spells {
		frame.Spells = append(frame.Spells, protocol.SpellFrame{
			ID:        int(sp.ID),
			X:         sp.Pos.X,
			Y:         sp.Pos.Y,
			Direction: protocol.Direction(sp.Direction),
		})
	}
	sort.Slice(frame.Entities, func(i, j int) bool { return frame.Entities[i].ID < frame.Entities[j].ID })
	sort.Slice(frame.Spells, func(i, j int) bool { return frame.Spells[i].ID < frame.Spells[j].ID })
	return frame
}
