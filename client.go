package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"marbleous-server/engine"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 32 * 1024 // a full doc in JSON fits comfortably
	sendBufSize       = 256
	maxMessagesPerSec = 120
	maxNameLen        = 16
	maxRoomNameLen    = 30
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	log        *zap.Logger
	playerID   engine.PlayerID
	roomID     string
	spectator  bool
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	// Auth state
	authPlayerID int64  // 0 = anonymous
	authUsername string // "" = anonymous
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		log:        hub.log.With(zap.String("remote", remoteAddr)),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("ws error", zap.Error(err))
			}
			break
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn("rate limit exceeded, disconnecting")
			break
		}

		if msgType == websocket.BinaryMessage {
			c.handleDocFrame(message)
		} else {
			c.handleMessage(message)
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 0xFF marks frames queued by SendBinary
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal", zap.Error(err))
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("unmarshal", zap.Error(err))
		return
	}

	switch env.T {
	case MsgList:
		c.SendJSON(Envelope{T: MsgRooms, Data: c.hub.rooms.ListRooms()})
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgLeave:
		c.handleLeave()
	case MsgCheck:
		c.handleCheck(env.D)
	case MsgReady:
		c.withRoom(func(r *Room) error { return r.SetReady(c.playerID, time.Now()) })
	case MsgTeam:
		var msg TeamMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		c.withRoom(func(r *Room) error { return r.SetTeam(c.playerID, msg.Team) })
	case MsgRematch:
		c.withRoom(func(r *Room) error { return r.Rematch(c.playerID) })
	case MsgDoc:
		var msg DocMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			c.sendError("bad doc")
			return
		}
		c.submitDoc(msg.Doc)
	case MsgCast:
		c.handleCast(env.D)
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgGuest:
		c.handleGuest()
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgProfile:
		c.handleProfile()
	}
}

// withRoom runs fn against the client's room and reports any error back
func (c *Client) withRoom(fn func(r *Room) error) {
	if c.roomID == "" || c.spectator {
		return
	}
	room := c.hub.rooms.GetRoom(c.roomID)
	if room == nil {
		return
	}
	if err := fn(room); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	name := cleanName(msg.RoomName, "Bubble Arena", maxRoomNameLen)
	room := c.hub.rooms.CreateRoom(name)
	if room == nil {
		c.sendError("too many active rooms")
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"rid": room.ID}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	def := "Player"
	if c.authUsername != "" {
		def = c.authUsername
	}
	name := cleanName(msg.Name, def, maxNameLen)

	c.handleLeave()
	room := c.hub.rooms.GetRoom(msg.RoomID)
	if room == nil {
		c.sendError("room not found")
		return
	}

	id, spectator, err := room.Join(name, c.authPlayerID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.playerID = id
	c.roomID = room.ID
	c.spectator = spectator

	c.SendJSON(Envelope{T: MsgJoined, Data: JoinedMsg{RoomID: room.ID, PlayerID: string(id), Spectator: spectator}})
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{ID: string(id), Config: room.Config()}})
	room.Attach(id, c)
}

func (c *Client) handleLeave() {
	if c.roomID == "" {
		return
	}
	c.hub.rooms.Leave(c.roomID, c.playerID)
	c.roomID = ""
	c.playerID = ""
	c.spectator = false
}

func (c *Client) handleCheck(data json.RawMessage) {
	var msg CheckMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.hub.rooms.GetRoom(msg.RoomID)
	if room == nil {
		c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{RoomID: msg.RoomID, Exists: false}})
		return
	}
	c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{
		RoomID:  msg.RoomID,
		Exists:  true,
		Name:    room.Name,
		Players: room.PlayerCount(),
		Phase:   room.Phase().String(),
	}})
}

// handleDocFrame accepts a binary doc frame. The player id inside the frame
// is ignored; a client only ever writes its own board.
func (c *Client) handleDocFrame(frame []byte) {
	_, doc, err := decodeDocFrame(frame)
	if err != nil {
		c.sendError("bad doc")
		return
	}
	c.submitDoc(doc)
}

func (c *Client) submitDoc(doc engine.Doc) {
	c.withRoom(func(r *Room) error { return r.SubmitDoc(c.playerID, doc, time.Now()) })
}

func (c *Client) handleCast(data json.RawMessage) {
	var msg CastMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	target := engine.PlayerID(msg.Target)
	if target == "" {
		target = c.playerID
	}
	c.withRoom(func(r *Room) error {
		_, err := r.Cast(c.playerID, target, time.Now())
		return err
	})
}

func (c *Client) signedIn(id int64, username, token string, guest bool) {
	if c.authPlayerID != 0 && c.authPlayerID != id {
		c.hub.SetOffline(c.authPlayerID, c)
	}
	c.authPlayerID = id
	c.authUsername = username
	c.hub.SetOnline(id, c)
	if c.hub.analytics != nil {
		c.hub.analytics.Track(EvtSignIn, id, c.roomID, "")
	}
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: username,
		PlayerID: id,
		Guest:    guest,
	}})
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts are disabled")
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.signedIn(id, strings.TrimSpace(msg.Username), token, false)
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts are disabled")
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.signedIn(id, strings.TrimSpace(msg.Username), token, false)
}

func (c *Client) handleGuest() {
	if c.hub.auth == nil {
		c.sendError("accounts are disabled")
		return
	}
	id, username, token, err := c.hub.auth.Guest()
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.signedIn(id, username, token, true)
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts are disabled")
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	claims, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.signedIn(claims.PlayerID, claims.Username, msg.Token, claims.Guest)
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPlayerID == 0 {
		c.sendError("not authenticated")
		return
	}
	stats, err := c.hub.db.GetStats(c.authPlayerID)
	if err != nil || stats == nil {
		c.sendError("profile not found")
		return
	}
	achievements, err := c.hub.db.GetAchievements(c.authPlayerID)
	if err != nil {
		c.log.Warn("load achievements", zap.Int64("player", c.authPlayerID), zap.Error(err))
	}
	c.SendJSON(Envelope{T: MsgProfileData, Data: ProfileDataMsg{
		Username:     c.authUsername,
		Level:        stats.Level,
		XP:           stats.XP,
		Rounds:       stats.Rounds,
		Wins:         stats.Wins,
		Losses:       stats.Losses,
		BestScore:    stats.BestScore,
		Cleared:      stats.Cleared,
		SpellsCast:   stats.SpellsCast,
		Playtime:     stats.Playtime,
		Achievements: achievements,
	}})
}
