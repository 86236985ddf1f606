package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"marbleous-server/engine"
)

// Client -> Server message types
const (
	MsgJoin    = "join"
	MsgLeave   = "leave"
	MsgCreate  = "create" // create room
	MsgList    = "list"   // list rooms
	MsgCheck   = "check"  // check if room exists
	MsgReady   = "ready"
	MsgTeam    = "team"
	MsgDoc     = "doc" // own board document, JSON form of the binary frame
	MsgCast    = "cast"
	MsgRematch = "rematch"

	MsgRegister = "register"
	MsgLogin    = "login"
	MsgGuest    = "guest"
	MsgAuth     = "auth" // resume with a stored token
	MsgProfile  = "profile"
)

// Server -> Client message types
const (
	MsgRooms       = "rooms"
	MsgCreated     = "created" // room created, client should navigate
	MsgJoined      = "joined"
	MsgWelcome     = "welcome"
	MsgLobby       = "lobby"
	MsgStart       = "start"
	MsgEvent       = "event"
	MsgRemoved     = "removed"
	MsgResult      = "result"
	MsgChecked     = "checked"
	MsgError       = "error"
	MsgAuthOK      = "auth_ok"
	MsgProfileData = "profile_data"
	MsgAchievement = "achievement"
)

// frameDoc tags a binary player-document frame:
// [frameDoc, len(player), player..., msgpack doc...]
const frameDoc byte = 0x02

var errBadFrame = errors.New("malformed doc frame")

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// CreateMsg is sent when a player wants to create a room
type CreateMsg struct {
	Name     string `json:"name"`
	RoomName string `json:"rname"`
}

// JoinMsg is sent when a player wants to join a room
type JoinMsg struct {
	Name   string `json:"name"`
	RoomID string `json:"rid"`
}

// CheckMsg asks whether a room exists
type CheckMsg struct {
	RoomID string `json:"rid"`
}

// CheckedMsg is the response to a room check
type CheckedMsg struct {
	RoomID  string `json:"rid"`
	Exists  bool   `json:"exists"`
	Name    string `json:"name,omitempty"`
	Players int    `json:"players,omitempty"`
	Phase   string `json:"phase,omitempty"`
}

// TeamMsg picks a team while the room is waiting. 0 plays alone.
type TeamMsg struct {
	Team int `json:"team"`
}

// CastMsg asks the room to cast the caster's next spell on Target
type CastMsg struct {
	Target string `json:"target"`
}

// DocMsg is the JSON alternative to a binary doc frame
type DocMsg struct {
	Player string     `json:"pid,omitempty"`
	Doc    engine.Doc `json:"doc"`
}

// RoomInfo is used in the room list
type RoomInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
	Phase   string `json:"phase"`
}

// JoinedMsg confirms a join. Spectators watch without a board.
type JoinedMsg struct {
	RoomID    string `json:"rid"`
	PlayerID  string `json:"pid"`
	Spectator bool   `json:"spectator,omitempty"`
}

// WelcomeMsg carries the rule set the client must simulate with
type WelcomeMsg struct {
	ID     string        `json:"id"`
	Config engine.Config `json:"config"`
}

// LobbyPlayer is one seat in the lobby view
type LobbyPlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Team  int    `json:"team"`
	Ready bool   `json:"ready"`
	Alive bool   `json:"alive"`
	Score int    `json:"score"`
}

// LobbyMsg is broadcast whenever seating, readiness or phase changes
type LobbyMsg struct {
	RoomID     string        `json:"rid"`
	Name       string        `json:"name"`
	Phase      string        `json:"phase"`
	Round      int           `json:"round"`
	Players    []LobbyPlayer `json:"players"`
	Spectators int           `json:"spectators"`
}

// StartMsg begins a round. Every board starts from Grid.
type StartMsg struct {
	Round   int           `json:"round"`
	Grid    *engine.Grid  `json:"grid"`
	Players []LobbyPlayer `json:"players"`
}

// RemovedMsg tells clients a board left the arena
type RemovedMsg struct {
	PlayerID string `json:"pid"`
}

// Standing is one board's line in the round result
type Standing struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Team       int    `json:"team"`
	Score      int    `json:"score"`
	Level      int    `json:"level"`
	Cleared    int    `json:"cleared"`
	SpellsCast int    `json:"spellsCast"`
	JunkSent   int    `json:"junkSent"`
	Won        bool   `json:"won"`
}

// ResultMsg closes a round
type ResultMsg struct {
	Round      int        `json:"round"`
	WinnerTeam int        `json:"winnerTeam"`
	Winners    []string   `json:"winners"`
	Duration   float64    `json:"duration"`
	Standings  []Standing `json:"standings"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg signs in to an account
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg resumes a session from a token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms any successful sign-in
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"pid"`
	Guest    bool   `json:"guest,omitempty"`
}

// ProfileDataMsg is the signed-in player's lifetime record
type ProfileDataMsg struct {
	Username     string   `json:"username"`
	Level        int      `json:"level"`
	XP           int      `json:"xp"`
	Rounds       int      `json:"rounds"`
	Wins         int      `json:"wins"`
	Losses       int      `json:"losses"`
	BestScore    int      `json:"bestScore"`
	Cleared      int      `json:"cleared"`
	SpellsCast   int      `json:"spellsCast"`
	Playtime     float64  `json:"playtime"`
	Achievements []string `json:"achievements"`
}

// AchievementMsg announces a newly unlocked achievement
type AchievementMsg struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// encodeDocFrame builds a binary doc frame for player
func encodeDocFrame(player engine.PlayerID, d engine.Doc) ([]byte, error) {
	if len(player) > 255 {
		return nil, fmt.Errorf("player id too long: %d bytes", len(player))
	}
	body, err := engine.EncodeDocBinary(d)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, 2+len(player)+len(body))
	frame = append(frame, frameDoc, byte(len(player)))
	frame = append(frame, player...)
	return append(frame, body...), nil
}

// decodeDocFrame is the inverse of encodeDocFrame
func decodeDocFrame(frame []byte) (engine.PlayerID, engine.Doc, error) {
	if len(frame) < 2 || frame[0] != frameDoc {
		return "", engine.Doc{}, errBadFrame
	}
	n := int(frame[1])
	if len(frame) < 2+n {
		return "", engine.Doc{}, errBadFrame
	}
	player := engine.PlayerID(frame[2 : 2+n])
	d, err := engine.DecodeDocBinary(frame[2+n:])
	if err != nil {
		return "", engine.Doc{}, err
	}
	return player, d, nil
}
