// Package game is the authoritative simulation kernel: rosters with
// persistent points, one arena at a time, and per-tick entity and spell
// updates. It is pure state plus sentinel errors; all IO and scheduling
// belong to the caller.
package game

import (
	"errors"
	"math/rand"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrDeadEntity    = errors.New("entity is dead")
	ErrUnknownSkill  = errors.New("unknown skill")
	ErrNoEnergy      = errors.New("not enough energy")
)

type EntityID int

type SpellID int

type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Direction mirrors the four wire directions without importing the protocol
// package; the server maps between them.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

func (d Direction) Vector() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	}
	return 0, 0
}

type Entity struct {
	ID        EntityID
	Player    string
	Pos       Vec2
	Health    int
	Energy    int
	Direction Direction

	speed        float64
	nextMoveTick float64
	intent       *Direction
}

func (e *Entity) Alive() bool { return e.Health > 0 }

// SpellSpec is the closed set of spell behaviors, dispatched by switch.
type SpellSpec int

const (
	SpecNone SpellSpec = iota
	SpecExplotableBall
)

type Spell struct {
	ID        SpellID
	Caster    EntityID
	Spec      SpellSpec
	Pos       Vec2
	Direction Direction

	speed        float64
	nextMoveTick float64
	hit          map[EntityID]bool
	destroyed    bool
}

// Arena is one round. It owns its entities and spells by value in dense
// maps; everything else refers to them by id.
type Arena struct {
	Number   int
	Width    int
	Height   int
	Entities map[EntityID]*Entity
	Spells   map[SpellID]*Spell

	tick         int
	nextEntityID EntityID
	nextSpellID  SpellID
	eliminated   []string // elimination order, first death first
}

// NewArena spawns one entity per player at distinct random positions.
func NewArena(number, width, height int, players []string, rng *rand.Rand) *Arena {
	a := &Arena{
		Number:   number,
		Width:    width,
		Height:   height,
		Entities: make(map[EntityID]*Entity, len(players)),
		Spells:   make(map[SpellID]*Spell),
	}
	for _, player := range players {
		a.nextEntityID++
		a.Entities[a.nextEntityID] = &Entity{
			ID:     a.nextEntityID,
			Player: player,
			Pos:    a.freePosition(rng),
			Health: EntityMaxHealth,
			Energy: EntityMaxEnergy,
			speed:  EntitySpeed,
		}
	}
	return a
}

func (a *Arena) freePosition(rng *rand.Rand) Vec2 {
	for {
		pos := Vec2{X: rng.Intn(a.Width), Y: rng.Intn(a.Height)}
		if a.entityAt(pos) == nil {
			return pos
		}
	}
}

func (a *Arena) entityAt(pos Vec2) *Entity {
	for _, e := range a.Entities {
		if e.Pos == pos && e.Alive() {
			return e
		}
	}
	return nil
}

// EntityOf returns the living or dead entity controlled by player, if any.
func (a *Arena) EntityOf(player string) *Entity {
	for _, e := range a.Entities {
		if e.Player == player {
			return e
		}
	}
	return nil
}

func (a *Arena) inBounds(pos Vec2) bool {
	return pos.X >= 0 && pos.X < a.Width && pos.Y >= 0 && pos.Y < a.Height
}

// SetMoveIntent queues a movement direction consumed at the entity's next
// eligible movement tick.
func (a *Arena) SetMoveIntent(id EntityID, dir Direction) error {
	e := a.Entities[id]
	if e == nil {
		return ErrUnknownEntity
	}
	if !e.Alive() {
		return ErrDeadEntity
	}
	d := dir
	e.intent = &d
	e.Direction = dir
	return nil
}

// Cast spawns a spell in front of the caster, charging its energy cost.
func (a *Arena) Cast(id EntityID, dir Direction, skillID int) error {
	e := a.Entities[id]
	if e == nil {
		return ErrUnknownEntity
	}
	if !e.Alive() {
		return ErrDeadEntity
	}
	if skillID != BallSkillID {
		return ErrUnknownSkill
	}
	if e.Energy < BallEnergyCost {
		return ErrNoEnergy
	}
	e.Energy -= BallEnergyCost
	e.Direction = dir

	dx, dy := dir.Vector()
	a.nextSpellID++
	a.Spells[a.nextSpellID] = &Spell{
		ID:        a.nextSpellID,
		Caster:    id,
		Spec:      SpecExplotableBall,
		Pos:       Vec2{X: e.Pos.X + dx, Y: e.Pos.Y + dy},
		Direction: dir,
		speed:     BallSpeed,
		hit:       make(map[EntityID]bool),
	}
	return nil
}

// Update advances the simulation one tick: entity movement and regen, then
// spell flight and effects, then death bookkeeping.
func (a *Arena) Update() {
	a.tick++
	tick := float64(a.tick)

	for _, e := range a.Entities {
		if !e.Alive() {
			continue
		}
		if e.Energy < EntityMaxEnergy {
			e.Energy += EnergyRegenPerTick
		}
		if e.intent == nil || tick < e.nextMoveTick {
			continue
		}
		dx, dy := e.intent.Vector()
		target := Vec2{X: e.Pos.X + dx, Y: e.Pos.Y + dy}
		e.intent = nil
		if !a.inBounds(target) || a.entityAt(target) != nil {
			continue
		}
		e.Pos = target
		e.nextMoveTick = tick + TicksPerSecond/e.speed
	}

	for id, s := range a.Spells {
		a.updateSpell(tick, s)
		if s.destroyed {
			delete(a.Spells, id)
		}
	}

	for id, e := range a.Entities {
		if !e.Alive() {
			a.eliminated = append(a.eliminated, e.Player)
			delete(a.Entities, id)
		}
	}
}

func (a *Arena) updateSpell(tick float64, s *Spell) {
	switch s.Spec {
	case SpecExplotableBall:
		a.updateBall(tick, s)
	default:
		s.destroyed = true
	}
}

// updateBall flies the ball along its direction and explodes it on the
// first contact with a living entity other than its caster, damaging every
// entity within the blast radius once. The contact check runs before and
// after the move so a ball spawned onto an occupied cell cannot fly through
// its target.
func (a *Arena) updateBall(tick float64, s *Spell) {
	if a.tryExplode(s) || tick < s.nextMoveTick {
		return
	}
	s.nextMoveTick = tick + TicksPerSecond/s.speed

	dx, dy := s.Direction.Vector()
	s.Pos = Vec2{X: s.Pos.X + dx, Y: s.Pos.Y + dy}
	if !a.inBounds(s.Pos) {
		s.destroyed = true
		return
	}
	a.tryExplode(s)
}

func (a *Arena) tryExplode(s *Spell) bool {
	target := a.entityAt(s.Pos)
	if target == nil || target.ID == s.Caster {
		return false
	}
	for _, e := range a.Entities {
		if !e.Alive() || s.hit[e.ID] {
			continue
		}
		if abs(e.Pos.X-s.Pos.X) <= BallBlastRadius && abs(e.Pos.Y-s.Pos.Y) <= BallBlastRadius {
			e.Health -= BallDamage
			s.hit[e.ID] = true
		}
	}
	s.destroyed = true
	return true
}

// Finished reports whether the round is over: at most one living entity.
func (a *Arena) Finished() bool {
	living := 0
	for _, e := range a.Entities {
		if e.Alive() {
			living++
		}
	}
	return living <= 1
}

// Ranking orders players best to worst: survivors first, then eliminated
// players in reverse elimination order.
func (a *Arena) Ranking() []string {
	ranking := make([]string, 0, len(a.Entities)+len(a.eliminated))
	for _, e := range a.Entities {
		ranking = append(ranking, e.Player)
	}
	for i := len(a.eliminated) - 1; i >= 0; i-- {
		ranking = append(ranking, a.eliminated[i])
	}
	return ranking
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
