package game

import "math/rand"

// Game holds the roster's persistent points across arenas. It exists from
// the moment the room fills until a player reaches the winner threshold.
type Game struct {
	arenaNumber  int
	arena        *Arena
	points       map[string]int
	winnerPoints int
	width        int
	height       int
	rng          *rand.Rand
}

func NewGame(players []string, winnerPoints, width, height int, rng *rand.Rand) *Game {
	points := make(map[string]int, len(players))
	for _, p := range players {
		points[p] = 0
	}
	return &Game{
		points:       points,
		winnerPoints: winnerPoints,
		width:        width,
		height:       height,
		rng:          rng,
	}
}

func (g *Game) Arena() *Arena { return g.arena }

func (g *Game) ArenaNumber() int { return g.arenaNumber }

// Players returns the roster in map order; callers needing a stable order
// sort the result.
func (g *Game) Players() []string {
	players := make([]string, 0, len(g.points))
	for p := range g.points {
		players = append(players, p)
	}
	return players
}

func (g *Game) Points() map[string]int { return g.points }

// StartArena allocates the next round, spawning one entity per roster
// player.
func (g *Game) StartArena() *Arena {
	g.arenaNumber++
	g.arena = NewArena(g.arenaNumber, g.width, g.height, g.Players(), g.rng)
	return g.arena
}

// ScoreArena folds the finished arena's ranking into the running points:
// with N ranked players the best earns N-1, the worst 0.
func (g *Game) ScoreArena() {
	if g.arena == nil {
		return
	}
	ranking := g.arena.Ranking()
	for i, player := range ranking {
		if _, ok := g.points[player]; !ok {
			continue
		}
		g.points[player] += len(ranking) - 1 - i
	}
}

// HasWinner reports whether any player reached the winner threshold.
func (g *Game) HasWinner() bool {
	for _, pts := range g.points {
		if pts >= g.winnerPoints {
			return true
		}
	}
	return false
}
