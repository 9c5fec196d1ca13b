// Package config loads server settings from the environment, with a .env
// file honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/lemunozm/asciiarena-sub000/internal/game"
)

type Config struct {
	TcpAddr  string
	UdpAddr  string
	HttpAddr string

	Capacity     int
	WinnerPoints int
	MapWidth     int
	MapHeight    int

	ArenaWait    time.Duration
	TickInterval time.Duration
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		TcpAddr:      ":3088",
		UdpAddr:      ":3088",
		HttpAddr:     ":8080",
		Capacity:     4,
		WinnerPoints: 15,
		MapWidth:     30,
		MapHeight:    30,
		ArenaWait:    3 * time.Second,
		TickInterval: time.Second / game.TicksPerSecond,
	}
}

// Load reads the environment on top of the defaults. A missing .env file is
// not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	var err error
	if cfg.TcpAddr, err = stringVar("TCP_ADDR", cfg.TcpAddr); err != nil {
		return Config{}, err
	}
	if cfg.UdpAddr, err = stringVar("UDP_ADDR", cfg.UdpAddr); err != nil {
		return Config{}, err
	}
	if cfg.HttpAddr, err = stringVar("HTTP_ADDR", cfg.HttpAddr); err != nil {
		return Config{}, err
	}
	if cfg.Capacity, err = intVar("CAPACITY", cfg.Capacity); err != nil {
		return Config{}, err
	}
	if cfg.WinnerPoints, err = intVar("WINNER_POINTS", cfg.WinnerPoints); err != nil {
		return Config{}, err
	}
	if cfg.MapWidth, err = intVar("MAP_WIDTH", cfg.MapWidth); err != nil {
		return Config{}, err
	}
	if cfg.MapHeight, err = intVar("MAP_HEIGHT", cfg.MapHeight); err != nil {
		return Config{}, err
	}
	waitSecs, err := intVar("ARENA_WAIT_SECS", int(cfg.ArenaWait/time.Second))
	if err != nil {
		return Config{}, err
	}
	cfg.ArenaWait = time.Duration(waitSecs) * time.Second

	if cfg.Capacity < 1 {
		return Config{}, fmt.Errorf("CAPACITY must be positive, got %d", cfg.Capacity)
	}
	if cfg.WinnerPoints < 1 {
		return Config{}, fmt.Errorf("WINNER_POINTS must be positive, got %d", cfg.WinnerPoints)
	}
	if cfg.MapWidth < 2 || cfg.MapHeight < 2 {
		return Config{}, fmt.Errorf("map size %dx%d too small", cfg.MapWidth, cfg.MapHeight)
	}
	return cfg, nil
}

func stringVar(name, fallback string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	return fallback, nil
}

func intVar(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return n, nil
}
