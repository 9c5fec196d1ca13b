package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRng() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func TestNewArena_SpawnsOneEntityPerPlayerAtDistinctPositions(t *testing.T) {
	players := []string{"A", "B", "C", "D"}
	a := NewArena(1, 10, 10, players, testRng())

	require.Len(t, a.Entities, 4)
	positions := make(map[Vec2]bool)
	owners := make(map[string]bool)
	for _, e := range a.Entities {
		assert.False(t, positions[e.Pos], "two entities share %v", e.Pos)
		positions[e.Pos] = true
		owners[e.Player] = true
		assert.Equal(t, EntityMaxHealth, e.Health)
		assert.Equal(t, EntityMaxEnergy, e.Energy)
	}
	assert.Len(t, owners, 4)
}

// place rebuilds the arena with entities at fixed positions so collision
// scenarios are deterministic.
func place(t *testing.T, a *Arena, positions map[string]Vec2) {
	t.Helper()
	for _, e := range a.Entities {
		pos, ok := positions[e.Player]
		require.True(t, ok, "no position for %s", e.Player)
		e.Pos = pos
	}
}

func entityOf(t *testing.T, a *Arena, player string) *Entity {
	t.Helper()
	e := a.EntityOf(player)
	require.NotNil(t, e, "no entity for %s", player)
	return e
}

func TestArena_MoveIntentConsumedOnEligibleTick(t *testing.T) {
	a := NewArena(1, 10, 10, []string{"A"}, testRng())
	e := entityOf(t, a, "A")
	place(t, a, map[string]Vec2{"A": {X: 5, Y: 5}})

	require.NoError(t, a.SetMoveIntent(e.ID, East))
	a.Update()
	assert.Equal(t, Vec2{X: 6, Y: 5}, e.Pos)

	// Intent is consumed: no further movement without a new request.
	a.Update()
	assert.Equal(t, Vec2{X: 6, Y: 5}, e.Pos)
}

func TestArena_MoveRespectsBoundsAndOccupancy(t *testing.T) {
	a := NewArena(1, 10, 10, []string{"A", "B"}, testRng())
	ea := entityOf(t, a, "A")
	eb := entityOf(t, a, "B")
	place(t, a, map[string]Vec2{"A": {X: 0, Y: 0}, "B": {X: 1, Y: 0}})

	require.NoError(t, a.SetMoveIntent(ea.ID, West))
	a.Update()
	assert.Equal(t, Vec2{X: 0, Y: 0}, ea.Pos, "walked off the map")

	require.NoError(t, a.SetMoveIntent(ea.ID, East))
	a.Update()
	assert.Equal(t, Vec2{X: 0, Y: 0}, ea.Pos, "walked into another entity")
	assert.Equal(t, Vec2{X: 1, Y: 0}, eb.Pos)
}

func TestArena_MovementRateIsLimited(t *testing.T) {
	a := NewArena(1, 20, 20, []string{"A"}, testRng())
	e := entityOf(t, a, "A")
	place(t, a, map[string]Vec2{"A": {X: 0, Y: 0}})

	for i := 0; i < TicksPerSecond; i++ {
		require.NoError(t, a.SetMoveIntent(e.ID, East))
		a.Update()
	}
	// One second of spammed intents moves at most EntitySpeed cells.
	assert.LessOrEqual(t, e.Pos.X, int(EntitySpeed)+1)
	assert.Greater(t, e.Pos.X, 0)
}

func TestArena_CastValidation(t *testing.T) {
	a := NewArena(1, 10, 10, []string{"A"}, testRng())
	e := entityOf(t, a, "A")

	assert.ErrorIs(t, a.Cast(EntityID(999), North, BallSkillID), ErrUnknownEntity)
	assert.ErrorIs(t, a.Cast(e.ID, North, 42), ErrUnknownSkill)

	e.Energy = BallEnergyCost - 1
	assert.ErrorIs(t, a.Cast(e.ID, North, BallSkillID), ErrNoEnergy)

	e.Energy = BallEnergyCost
	require.NoError(t, a.Cast(e.ID, North, BallSkillID))
	assert.Equal(t, 0, e.Energy)
	assert.Len(t, a.Spells, 1)

	e.Health = 0
	assert.ErrorIs(t, a.Cast(e.ID, North, BallSkillID), ErrDeadEntity)
	assert.ErrorIs(t, a.SetMoveIntent(e.ID, North), ErrDeadEntity)
}

func TestArena_BallHitsTargetAndEliminates(t *testing.T) {
	a := NewArena(1, 10, 10, []string{"A", "B"}, testRng())
	ea := entityOf(t, a, "A")
	eb := entityOf(t, a, "B")
	place(t, a, map[string]Vec2{"A": {X: 0, Y: 5}, "B": {X: 6, Y: 5}})
	eb.Health = BallDamage // one hit kills

	require.NoError(t, a.Cast(ea.ID, East, BallSkillID))
	for i := 0; i < 4*TicksPerSecond && !a.Finished(); i++ {
		a.Update()
	}

	require.True(t, a.Finished())
	assert.Nil(t, a.EntityOf("B"))
	assert.Equal(t, []string{"A", "B"}, a.Ranking())
	assert.Empty(t, a.Spells, "exploded ball must be removed")
}

func TestArena_BallLeavingBoundsIsDestroyed(t *testing.T) {
	a := NewArena(1, 10, 10, []string{"A"}, testRng())
	e := entityOf(t, a, "A")
	place(t, a, map[string]Vec2{"A": {X: 9, Y: 5}})

	require.NoError(t, a.Cast(e.ID, East, BallSkillID))
	a.Update()
	assert.Empty(t, a.Spells)
}

func TestArena_RankingIsReverseEliminationOrder(t *testing.T) {
	a := NewArena(1, 20, 20, []string{"A", "B", "C"}, testRng())
	place(t, a, map[string]Vec2{"A": {X: 0, Y: 0}, "B": {X: 10, Y: 10}, "C": {X: 19, Y: 19}})

	// Kill C first, then B; A survives.
	entityOf(t, a, "C").Health = 0
	a.Update()
	entityOf(t, a, "B").Health = 0
	a.Update()

	require.True(t, a.Finished())
	assert.Equal(t, []string{"A", "B", "C"}, a.Ranking())
}

func TestGame_ScoreArenaAwardsByRank(t *testing.T) {
	g := NewGame([]string{"A", "B", "C"}, 10, 20, 20, testRng())
	a := g.StartArena()
	require.Equal(t, 1, g.ArenaNumber())
	place(t, a, map[string]Vec2{"A": {X: 0, Y: 0}, "B": {X: 10, Y: 10}, "C": {X: 19, Y: 19}})

	entityOf(t, a, "C").Health = 0
	a.Update()
	entityOf(t, a, "B").Health = 0
	a.Update()
	require.True(t, a.Finished())

	g.ScoreArena()
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "C": 0}, g.Points())
	assert.False(t, g.HasWinner())
}

func TestGame_PointsAccumulateAcrossArenas(t *testing.T) {
	g := NewGame([]string{"A", "B"}, 2, 20, 20, testRng())

	for round := 0; round < 2; round++ {
		a := g.StartArena()
		place(t, a, map[string]Vec2{"A": {X: 0, Y: 0}, "B": {X: 10, Y: 10}})
		entityOf(t, a, "B").Health = 0
		a.Update()
		require.True(t, a.Finished())
		g.ScoreArena()
	}

	assert.Equal(t, 2, g.Points()["A"])
	assert.True(t, g.HasWinner())
}
