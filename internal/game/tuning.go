package game

// Simulation tuning. Speeds are in cells per second; the loop converts them
// to tick intervals via TicksPerSecond.
const (
	TicksPerSecond = 30

	EntityMaxHealth = 100
	EntityMaxEnergy = 100
	EntitySpeed     = 8.0

	EnergyRegenPerTick = 1

	BallSkillID     = 1
	BallEnergyCost  = 40
	BallSpeed       = 20.0
	BallDamage      = 35
	BallBlastRadius = 1
)
