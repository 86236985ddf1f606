package main

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"marbleous-server/engine"
)

const (
	RoomTickRate     = 10 // timer checks per second
	RoomTickDuration = time.Second / RoomTickRate
)

const (
	maxPlayersPerRoom = 10
	maxSpectators     = 20
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

var (
	errRoomFull   = errors.New("room full")
	errRoomClosed = errors.New("room closed")
	errNotPlaying = errors.New("no round in progress")
	errNotSeated  = errors.New("not seated in this room")
	errBoardOut   = errors.New("board is out of the round")
	errBadTarget  = errors.New("target not found")
	errNoSpell    = errors.New("no spell to cast")
	errSelfOnly   = errors.New("spell can only target yourself")
	errBadTeam    = errors.New("invalid team")
	errBadDoc     = errors.New("document does not fit the board")
)

// seat is a player with a board, plus what the room tallies for the result
type seat struct {
	board   *engine.Board
	client  Broadcaster
	authID  int64
	ready   bool
	cleared int
	spells  int
	junk    int
}

// Room is one arena: its seated boards, spectators and round lifecycle. The
// room is the authority for levels, attacks and spells; clients own their
// own board everywhere else.
type Room struct {
	ID   string
	Name string

	mu       sync.Mutex
	eng      *engine.Engine
	cfg      engine.Config
	phase    RoomPhase
	round    int
	seats    map[engine.PlayerID]*seat
	order    []engine.PlayerID
	watchers map[engine.PlayerID]Broadcaster
	nextSolo int
	closed   bool

	startedAt  time.Time
	startTeams int
	nextLevel  time.Time
	nextAttack time.Time

	stop     chan struct{}
	stopOnce sync.Once

	log       *zap.Logger
	db        *DB
	analytics *Analytics
	persist   sync.WaitGroup
}

// NewRoom creates a waiting room. db and analytics may be nil.
func NewRoom(id, name string, eng *engine.Engine, db *DB, analytics *Analytics, logger *zap.Logger) *Room {
	return &Room{
		ID:        id,
		Name:      name,
		eng:       eng,
		cfg:       eng.Config(),
		seats:     make(map[engine.PlayerID]*seat),
		watchers:  make(map[engine.PlayerID]Broadcaster),
		nextSolo:  firstSoloTeam,
		stop:      make(chan struct{}),
		log:       logger.With(zap.String("room", id)),
		db:        db,
		analytics: analytics,
	}
}

// Run drives the coarse timers until Stop
func (r *Room) Run() {
	ticker := time.NewTicker(RoomTickDuration)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			r.update(now)
		case <-r.stop:
			return
		}
	}
}

// Stop terminates the timer loop
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Config returns the rule set boards in this room play by
func (r *Room) Config() engine.Config { return r.cfg }

// Phase returns the current phase
func (r *Room) Phase() RoomPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Round returns the number of rounds started so far
func (r *Room) Round() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round
}

// PlayerCount returns the number of seated players
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seats)
}

// OccupantCount returns seated players plus spectators
func (r *Room) OccupantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seats) + len(r.watchers)
}

// Board returns a snapshot document of a seated board
func (r *Room) Board(id engine.PlayerID) (engine.Doc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.seats[id]
	if !ok {
		return engine.Doc{}, false
	}
	return s.board.Doc(), true
}

// Join seats a player, or adds a spectator once the room is playing or full.
// authID is 0 for anonymous players.
func (r *Room) Join(name string, authID int64) (engine.PlayerID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", false, errRoomClosed
	}
	id := engine.PlayerID(GenerateID(4))
	if r.phase != PhaseWaiting || len(r.seats) >= maxPlayersPerRoom {
		if len(r.watchers) >= maxSpectators {
			return "", false, errRoomFull
		}
		r.watchers[id] = nil
		return id, true, nil
	}

	b := engine.NewBoard(id, name, r.soloTeam(), r.eng.EmptyGrid())
	r.seats[id] = &seat{board: b, authID: authID}
	r.order = append(r.order, id)
	return id, false, nil
}

// Attach associates a broadcaster with a joined id and brings it up to date
func (r *Room) Attach(id engine.PlayerID, c Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.seats[id]; ok {
		s.client = c
	} else if _, ok := r.watchers[id]; ok {
		r.watchers[id] = c
	} else {
		return
	}
	r.broadcastLobby()
	if r.phase == PhaseWaiting {
		return
	}
	for _, b := range r.boards() {
		if frame, err := encodeDocFrame(b.ID, b.Doc()); err == nil {
			c.SendBinary(frame)
		}
	}
}

// Leave removes a player or spectator and returns how many remain. A player
// leaving mid-round forfeits their board. Once the last occupant leaves the
// room is closed and refuses further joins.
func (r *Room) Leave(id engine.PlayerID, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.leave(id, now)
	if n == 0 {
		r.closed = true
	}
	return n
}

func (r *Room) leave(id engine.PlayerID, now time.Time) int {
	if _, ok := r.watchers[id]; ok {
		delete(r.watchers, id)
		r.broadcastLobby()
		return len(r.seats) + len(r.watchers)
	}
	s, ok := r.seats[id]
	if !ok {
		return len(r.seats) + len(r.watchers)
	}
	if r.phase == PhasePlaying && s.board.Alive {
		s.board.Alive = false
		r.broadcastEvent(engine.Event{Kind: engine.EventGameOver, Player: id})
		r.checkRoundEnd(now)
	}
	delete(r.seats, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.broadcast(Envelope{T: MsgRemoved, Data: RemovedMsg{PlayerID: string(id)}})
	if r.phase == PhaseWaiting {
		r.maybeStart(now)
	}
	r.broadcastLobby()
	return len(r.seats) + len(r.watchers)
}

// SetTeam moves a waiting player to team 1..4, or back to a seat of its own
// with TeamNone
func (r *Room) SetTeam(id engine.PlayerID, team int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.seats[id]
	if !ok {
		return errNotSeated
	}
	if r.phase != PhaseWaiting || team < TeamNone || team > maxTeam {
		return errBadTeam
	}
	if team == TeamNone {
		if !IsSoloTeam(s.board.Team) {
			s.board.Team = r.soloTeam()
		}
	} else {
		s.board.Team = team
	}
	r.broadcastLobby()
	return nil
}

// SetReady marks a waiting player ready. The round starts once every seated
// player is ready.
func (r *Room) SetReady(id engine.PlayerID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.seats[id]
	if !ok {
		return errNotSeated
	}
	if r.phase != PhaseWaiting {
		return nil
	}
	s.ready = true
	r.broadcastLobby()
	r.maybeStart(now)
	return nil
}

// Rematch returns a finished room to waiting. Spectators stay spectators
// until they rejoin.
func (r *Room) Rematch(id engine.PlayerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seats[id]; !ok {
		return errNotSeated
	}
	if r.phase != PhaseResult {
		return nil
	}
	r.phase = PhaseWaiting
	for _, s := range r.seats {
		s.ready = false
	}
	r.broadcastLobby()
	return nil
}

// SubmitDoc accepts a player's own board document and relays it. Name, team
// and level stay with the room.
func (r *Room) SubmitDoc(id engine.PlayerID, d engine.Doc, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhasePlaying {
		return errNotPlaying
	}
	s, ok := r.seats[id]
	if !ok {
		return errNotSeated
	}
	b := s.board
	if !b.Alive {
		return errBoardOut
	}
	if err := r.checkDoc(d); err != nil {
		return err
	}
	if gain := d.AttackCounter - b.AttackCounter; gain > 0 {
		s.cleared += gain
	}
	d.Name, d.Team, d.Level = b.Name, b.Team, b.Level
	b.ApplyDoc(d)

	if b.Alive && r.eng.IsLost(b) {
		b.Alive = false
	}
	r.relayDoc(b, id)
	if !b.Alive {
		r.broadcastEvent(engine.Event{Kind: engine.EventGameOver, Player: id})
		r.checkRoundEnd(now)
	}
	return nil
}

// checkDoc rejects documents the engine could not safely operate on
func (r *Room) checkDoc(d engine.Doc) error {
	if d.Grid != nil {
		if err := d.Grid.Validate(); err != nil {
			return err
		}
		if d.Grid.Rows() != r.cfg.Rows || d.Grid.Cols() != r.cfg.Cols {
			return errBadDoc
		}
	}
	if len(d.Spells) > r.cfg.MaxSpells || d.Score < 0 || d.AttackCounter < 0 {
		return errBadDoc
	}
	for _, sp := range d.Spells {
		if !sp.Valid() {
			return errBadDoc
		}
	}
	return nil
}

// Cast takes the caster's next spell and applies it to target, which may be
// the caster. Both boards are rebroadcast to everyone.
func (r *Room) Cast(caster, target engine.PlayerID, now time.Time) (engine.SpellResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhasePlaying {
		return engine.SpellResult{}, errNotPlaying
	}
	cs, ok := r.seats[caster]
	if !ok {
		return engine.SpellResult{}, errNotSeated
	}
	ts, ok := r.seats[target]
	if !ok {
		return engine.SpellResult{}, errBadTarget
	}
	if !cs.board.Alive || !ts.board.Alive {
		return engine.SpellResult{}, errBoardOut
	}
	queue := cs.board.Spells
	spell, rest, ok := engine.TakeSpell(queue, r.cfg.CastFrom)
	if !ok {
		return engine.SpellResult{}, errNoSpell
	}
	if spell.SelfOnly() && target != caster {
		return engine.SpellResult{}, errSelfOnly
	}
	cs.board.Spells = rest

	res, ok := r.eng.ApplySpell(ts.board, spell, now)
	if !ok {
		cs.board.Spells = queue
		return engine.SpellResult{}, errNoSpell
	}
	res.Patch(ts.board)
	cs.spells++

	r.broadcastEvent(engine.Event{Kind: engine.EventSpellCast, Player: caster, Spell: spell, Target: target})
	r.relayDoc(cs.board, "")
	if target != caster {
		r.relayDoc(ts.board, "")
	}
	if r.analytics != nil {
		r.analytics.Track(EvtSpellCast, cs.authID, r.ID, eventData(map[string]interface{}{"spell": spell.String()}))
	}
	if res.Grid != nil && r.eng.IsLost(ts.board) {
		ts.board.Alive = false
		r.broadcastEvent(engine.Event{Kind: engine.EventGameOver, Player: target})
		r.checkRoundEnd(now)
	}
	return res, nil
}

// update runs the level and attack cadences that came due by now
func (r *Room) update(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.phase == PhasePlaying && !now.Before(r.nextLevel) {
		r.nextLevel = r.nextLevel.Add(r.cfg.LevelInterval)
		r.levelUp()
	}
	for r.phase == PhasePlaying && !now.Before(r.nextAttack) {
		r.nextAttack = r.nextAttack.Add(r.cfg.AttackInterval)
		r.attack(now)
	}
}

func (r *Room) levelUp() {
	for _, b := range r.boards() {
		if !b.Alive {
			continue
		}
		b.Level++
		r.broadcastEvent(engine.Event{Kind: engine.EventLevelUp, Player: b.ID, Level: b.Level})
		r.relayDoc(b, "")
	}
}

func (r *Room) attack(now time.Time) {
	boards := r.boards()
	before := make(map[engine.PlayerID]int, len(boards))
	for _, b := range boards {
		before[b.ID] = b.AttackCounter
	}
	owed := r.eng.AttackTick(boards)

	for _, b := range boards {
		spent := before[b.ID] - b.AttackCounter
		if spent == 0 {
			continue
		}
		targets := 0
		for _, o := range boards {
			if o.Alive && o.Team != b.Team {
				targets++
			}
		}
		r.seats[b.ID].junk += spent / r.cfg.AttackUnit * b.Level * targets
		if owed[b.ID] == 0 {
			r.relayDoc(b, "")
		}
	}
	for _, b := range boards {
		n := owed[b.ID]
		if n == 0 {
			continue
		}
		placed := r.eng.AddJunkBubbles(b, n)
		r.broadcastEvent(engine.Event{Kind: engine.EventJunk, Player: b.ID, Count: placed})
		if r.eng.IsLost(b) {
			b.Alive = false
		}
		r.relayDoc(b, "")
		if !b.Alive {
			r.broadcastEvent(engine.Event{Kind: engine.EventGameOver, Player: b.ID})
		}
	}
	r.checkRoundEnd(now)
}

// maybeStart begins a round when every seated player is ready
func (r *Room) maybeStart(now time.Time) {
	if len(r.seats) == 0 {
		return
	}
	for _, s := range r.seats {
		if !s.ready {
			return
		}
	}
	r.startRound(now)
}

func (r *Room) startRound(now time.Time) {
	r.round++
	grid := r.eng.CreateInitialGrid()
	for _, s := range r.seats {
		s.board.ResetForRound(grid.Clone())
		s.cleared, s.spells, s.junk = 0, 0, 0
	}
	r.phase = PhasePlaying
	r.startedAt = now
	r.startTeams = countTeams(r.boards())
	r.nextLevel = now.Add(r.cfg.LevelInterval)
	r.nextAttack = now.Add(r.cfg.AttackInterval)

	r.broadcast(Envelope{T: MsgStart, Data: StartMsg{Round: r.round, Grid: grid, Players: r.lobbyPlayers()}})
	r.broadcastLobby()
	r.log.Info("round started", zap.Int("round", r.round), zap.Int("players", len(r.seats)))
	if r.analytics != nil {
		r.analytics.Track(EvtRoundStart, 0, r.ID, "")
	}
}

// checkRoundEnd closes the round once it is decided
func (r *Room) checkRoundEnd(now time.Time) {
	if r.phase != PhasePlaying || !roundOver(r.boards(), r.startTeams) {
		return
	}
	r.phase = PhaseResult
	team, won := winningTeam(r.boards())
	res := ResultMsg{Round: r.round, Duration: now.Sub(r.startedAt).Seconds()}
	if won {
		res.WinnerTeam = team
	}
	accounts := make(map[string]int64)
	for _, id := range r.order {
		s := r.seats[id]
		st := Standing{
			ID:         string(id),
			Name:       s.board.Name,
			Team:       s.board.Team,
			Score:      s.board.Score,
			Level:      s.board.Level,
			Cleared:    s.cleared,
			SpellsCast: s.spells,
			JunkSent:   s.junk,
			Won:        won && s.board.Team == team,
		}
		if st.Won {
			res.Winners = append(res.Winners, st.ID)
		}
		if s.authID != 0 {
			accounts[st.ID] = s.authID
		}
		res.Standings = append(res.Standings, st)
	}
	sortStandings(res.Standings)

	r.broadcast(Envelope{T: MsgResult, Data: res})
	r.broadcastLobby()
	r.log.Info("round finished",
		zap.Int("round", r.round),
		zap.Int("winnerTeam", res.WinnerTeam),
		zap.Float64("duration", res.Duration))

	r.persist.Add(1)
	go r.record(res, accounts)
}

// record persists a finished round and unlocks achievements
func (r *Room) record(res ResultMsg, accounts map[string]int64) {
	defer r.persist.Done()

	if r.analytics != nil {
		r.analytics.Track(EvtRoundEnd, 0, r.ID, eventData(map[string]interface{}{
			"duration": res.Duration,
			"players":  len(res.Standings),
			"winner":   res.WinnerTeam,
		}))
	}
	if r.db == nil {
		return
	}
	roundID, err := r.db.RecordRound(r.ID, res.Duration, res.WinnerTeam, len(res.Standings))
	if err != nil {
		r.log.Error("record round", zap.Error(err))
		return
	}
	for _, st := range res.Standings {
		authID, ok := accounts[st.ID]
		if !ok {
			continue
		}
		xp := RoundXP(st.Score, st.SpellsCast, st.Won)
		row := RoundPlayerRow{
			RoundID:    roundID,
			PlayerID:   authID,
			Team:       st.Team,
			Score:      st.Score,
			Level:      st.Level,
			Cleared:    st.Cleared,
			SpellsCast: st.SpellsCast,
			JunkSent:   st.JunkSent,
			Won:        st.Won,
			XPEarned:   xp,
		}
		if err := r.db.RecordRoundPlayer(row); err != nil {
			r.log.Error("record round player", zap.Int64("player", authID), zap.Error(err))
			continue
		}
		_, level, err := r.db.UpdateStatsAfterRound(row, res.Duration)
		if err != nil {
			r.log.Error("update stats", zap.Int64("player", authID), zap.Error(err))
			continue
		}
		if r.analytics != nil && level > 1 {
			r.analytics.Track(EvtLevelUp, authID, r.ID, "")
		}
		for _, a := range CheckAchievements(r.db, authID, st) {
			r.notify(engine.PlayerID(st.ID), Envelope{T: MsgAchievement, Data: AchievementMsg{
				ID:          a.ID,
				Name:        a.Name,
				Description: a.Description,
			}})
			if r.analytics != nil {
				r.analytics.Track(EvtAchievement, authID, r.ID, eventData(map[string]interface{}{"id": a.ID}))
			}
		}
	}
}

// WaitPersisted blocks until every finished round has been written
func (r *Room) WaitPersisted() {
	r.persist.Wait()
}

func (r *Room) notify(id engine.PlayerID, msg interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.seats[id]; ok && s.client != nil {
		s.client.SendJSON(msg)
	}
}

func (r *Room) soloTeam() int {
	t := r.nextSolo
	r.nextSolo++
	return t
}

// boards returns the seated boards in seating order
func (r *Room) boards() []*engine.Board {
	out := make([]*engine.Board, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.seats[id].board)
	}
	return out
}

func (r *Room) lobbyPlayers() []LobbyPlayer {
	out := make([]LobbyPlayer, 0, len(r.order))
	for _, id := range r.order {
		s := r.seats[id]
		out = append(out, LobbyPlayer{
			ID:    string(id),
			Name:  s.board.Name,
			Team:  s.board.Team,
			Ready: s.ready,
			Alive: s.board.Alive,
			Score: s.board.Score,
		})
	}
	return out
}

func (r *Room) broadcastLobby() {
	r.broadcast(Envelope{T: MsgLobby, Data: LobbyMsg{
		RoomID:     r.ID,
		Name:       r.Name,
		Phase:      r.phase.String(),
		Round:      r.round,
		Players:    r.lobbyPlayers(),
		Spectators: len(r.watchers),
	}})
}

func (r *Room) broadcastEvent(ev engine.Event) {
	r.broadcast(Envelope{T: MsgEvent, Data: ev})
}

// broadcast sends msg to every seated player and spectator
func (r *Room) broadcast(msg interface{}) {
	for _, s := range r.seats {
		if s.client != nil {
			s.client.SendJSON(msg)
		}
	}
	for _, c := range r.watchers {
		if c != nil {
			c.SendJSON(msg)
		}
	}
}

// relayDoc sends b's document to everyone except skip
func (r *Room) relayDoc(b *engine.Board, skip engine.PlayerID) {
	frame, err := encodeDocFrame(b.ID, b.Doc())
	if err != nil {
		r.log.Error("encode doc", zap.String("player", string(b.ID)), zap.Error(err))
		return
	}
	for id, s := range r.seats {
		if id != skip && s.client != nil {
			s.client.SendBinary(frame)
		}
	}
	for _, c := range r.watchers {
		if c != nil {
			c.SendBinary(frame)
		}
	}
}
