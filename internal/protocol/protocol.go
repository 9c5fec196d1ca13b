package protocol

import (
	"encoding/json"
)

// Client -> Server envelope types.
const (
	MsgVersion       = "Version"
	MsgSubscribeInfo = "SubscribeInfo"
	MsgLogin         = "Login"
	MsgLogout        = "Logout"
	MsgConnectUdp    = "ConnectUdp"
	MsgTrustUdp      = "TrustUdp"
	MsgMove          = "Move"
	MsgCast          = "Cast"
)

// Server -> Client envelope types.
const (
	MsgVersionInfo   = "VersionInfo"
	MsgStaticInfo    = "StaticInfo"
	MsgDynamicInfo   = "DynamicInfo"
	MsgLoginStatus   = "LoginStatus"
	MsgUdpConnected  = "UdpConnected"
	MsgStartGame     = "StartGame"
	MsgWaitArena     = "WaitArena"
	MsgStartArena    = "StartArena"
	MsgFrame         = "Frame"
	MsgPointsUpdated = "PointsUpdated"
	MsgFinishGame    = "FinishGame"
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"`
}

// Client -> Server payloads.

type Version struct {
	Tag string `json:"tag"`
}

type SubscribeInfo struct{}

type Login struct {
	Name string `json:"name"`
}

type Logout struct{}

type ConnectUdp struct {
	Token uint64 `json:"token"`
}

type TrustUdp struct{}

type Move struct {
	Direction Direction `json:"direction"`
}

type Cast struct {
	Direction Direction `json:"direction"`
	SkillID   int       `json:"skill_id"`
}

// Server -> Client payloads.

type VersionInfo struct {
	Tag           string        `json:"tag"`
	Compatibility Compatibility `json:"compatibility"`
}

type StaticInfo struct {
	UdpPort      int      `json:"udp_port"`
	Capacity     int      `json:"capacity"`
	MapWidth     int      `json:"map_width"`
	MapHeight    int      `json:"map_height"`
	WinnerPoints int      `json:"winner_points"`
	Players      []string `json:"players"`
}

type DynamicInfo struct {
	Players []string `json:"players"`
}

type LoginKind string

const (
	KindFirstTime    LoginKind = "first_time"
	KindReconnection LoginKind = "reconnection"
)

type LoginStatusCode string

const (
	StatusLogged        LoginStatusCode = "logged"
	StatusInvalidName   LoginStatusCode = "invalid_name"
	StatusAlreadyLogged LoginStatusCode = "already_logged"
	StatusPlayerLimit   LoginStatusCode = "player_limit"
)

type LoginStatus struct {
	Name   string          `json:"name"`
	Status LoginStatusCode `json:"status"`
	Token  uint64          `json:"token,omitempty"`
	Kind   LoginKind       `json:"kind,omitempty"`
}

type UdpConnected struct{}

type StartGame struct {
	Players []string       `json:"players"`
	Points  map[string]int `json:"points"`
}

type WaitArena struct {
	Millis int64 `json:"millis"`
}

// EntityBinding ties a player name to the entity it controls this arena.
type EntityBinding struct {
	Player   string `json:"player"`
	EntityID int    `json:"entity_id"`
}

type StartArena struct {
	Number    int             `json:"number"`
	Bindings  []EntityBinding `json:"bindings"`
	MapWidth  int             `json:"map_width"`
	MapHeight int             `json:"map_height"`
}

type EntityFrame struct {
	ID        int       `json:"id"`
	Player    string    `json:"player"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Health    int       `json:"health"`
	Energy    int       `json:"energy"`
	Direction Direction `json:"direction"`
}

type SpellFrame struct {
	ID        int       `json:"id"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Direction Direction `json:"direction"`
}

type Frame struct {
	Entities []EntityFrame `json:"entities"`
	Spells   []SpellFrame  `json:"spells"`
}

type PointsUpdated struct {
	Points map[string]int `json:"points"`
}

type FinishGame struct{}

// ValidName reports whether name is a single uppercase ASCII letter,
// the only display identifier the server accepts.
func ValidName(name string) bool {
	return len(name) == 1 && name[0] >= 'A' && name[0] <= 'Z'
}
