package main

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types for analytics tracking
const (
	EvtRoomCreated  = "room_created"
	EvtRoundStart   = "round_start"
	EvtRoundEnd     = "round_end"
	EvtSpellCast    = "spell_cast"
	EvtAchievement  = "achievement"
	EvtLevelUp      = "account_level"
	EvtSessionStart = "session_start"
	EvtSessionEnd   = "session_end"
	EvtSignIn       = "sign_in"
)

const (
	analyticsBuffer     = 1024
	analyticsBatch      = 50
	analyticsFlushEvery = 5 * time.Second
)

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	PlayerID  int64
	RoomID    string
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// Analytics handles event tracking with batched background writes
type Analytics struct {
	db     *DB
	log    *zap.Logger
	events chan AnalyticsEvent
	stop   chan struct{}
	wg     sync.WaitGroup

	mu              sync.RWMutex
	concurrentPeers int
	activeRooms     int
}

// NewAnalytics creates and starts the analytics background writer. A nil db
// keeps the live metrics and discards events.
func NewAnalytics(db *DB, logger *zap.Logger) *Analytics {
	a := &Analytics{
		db:     db,
		log:    logger,
		events: make(chan AnalyticsEvent, analyticsBuffer),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// eventData encodes event metadata, or "" when it cannot
func eventData(fields map[string]interface{}) string {
	b, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(b)
}

// Track enqueues an event for async persistence (non-blocking)
func (a *Analytics) Track(evtType string, playerID int64, roomID string, data string) {
	select {
	case a.events <- AnalyticsEvent{
		Type:      evtType,
		PlayerID:  playerID,
		RoomID:    roomID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// full; drop rather than block a room
	}
}

// SetConcurrentPeers updates live connection count metric
func (a *Analytics) SetConcurrentPeers(n int) {
	a.mu.Lock()
	a.concurrentPeers = n
	a.mu.Unlock()
}

// SetActiveRooms updates live room count metric
func (a *Analytics) SetActiveRooms(n int) {
	a.mu.Lock()
	a.activeRooms = n
	a.mu.Unlock()
}

// GetLiveMetrics returns (connections, rooms)
func (a *Analytics) GetLiveMetrics() (int, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.concurrentPeers, a.activeRooms
}

// Stop drains pending events and shuts down the writer
func (a *Analytics) Stop() {
	close(a.stop)
	a.wg.Wait()
}

// writer is the background goroutine that batches and writes events to DB
func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, analyticsBatch)
	ticker := time.NewTicker(analyticsFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= analyticsBatch {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					a.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch of events to the database
func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		a.log.Error("analytics begin", zap.Error(err))
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO analytics_events (event_type, player_id, room_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		a.log.Error("analytics prepare", zap.Error(err))
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		pid := sql.NullInt64{Int64: evt.PlayerID, Valid: evt.PlayerID > 0}
		rid := sql.NullString{String: evt.RoomID, Valid: evt.RoomID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, pid, rid, data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			a.log.Warn("analytics insert", zap.String("type", evt.Type), zap.Error(err))
		}
	}
	if err := tx.Commit(); err != nil {
		a.log.Error("analytics commit", zap.Error(err))
	}
}

// --- Query methods for the API ---

// ActivePlayers returns the number of distinct accounts seen in the last days
func (a *Analytics) ActivePlayers(days int) (int, error) {
	if a.db == nil {
		return 0, nil
	}
	var count int
	err := a.db.conn.QueryRow(`
		SELECT COUNT(DISTINCT player_id) FROM analytics_events
		WHERE player_id IS NOT NULL AND created_at >= date('now', '-' || ? || ' days')
	`, days).Scan(&count)
	return count, err
}

// RoundStats summarises finished rounds over the last days
func (a *Analytics) RoundStats(days int) (RoundAnalytics, error) {
	var rs RoundAnalytics
	if a.db == nil {
		return rs, nil
	}
	var avgDur, avgPlayers sql.NullFloat64
	err := a.db.conn.QueryRow(`
		SELECT COUNT(*),
			AVG(CASE WHEN json_valid(data) THEN json_extract(data, '$.duration') END),
			AVG(CASE WHEN json_valid(data) THEN json_extract(data, '$.players') END)
		FROM analytics_events
		WHERE event_type = ? AND created_at >= date('now', '-' || ? || ' days')
	`, EvtRoundEnd, days).Scan(&rs.Count, &avgDur, &avgPlayers)
	rs.AvgDuration = avgDur.Float64
	rs.AvgPlayers = avgPlayers.Float64
	return rs, err
}

// EventCounts returns counts of each event type for the last N days
func (a *Analytics) EventCounts(days int) (map[string]int, error) {
	result := make(map[string]int)
	if a.db == nil {
		return result, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			return nil, err
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// PopularSpells returns the most cast spells
func (a *Analytics) PopularSpells(limit int) ([]SpellAnalytics, error) {
	result := []SpellAnalytics{}
	if a.db == nil {
		return result, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT COALESCE(json_extract(data, '$.spell'), 'unknown') AS spell, COUNT(*) AS cnt
		FROM analytics_events
		WHERE event_type = ? AND json_valid(data)
		GROUP BY spell ORDER BY cnt DESC, spell LIMIT ?
	`, EvtSpellCast, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sa SpellAnalytics
		if err := rows.Scan(&sa.Spell, &sa.Count); err != nil {
			return nil, err
		}
		result = append(result, sa)
	}
	return result, rows.Err()
}

// RoundAnalytics holds aggregated round statistics
type RoundAnalytics struct {
	Count       int     `json:"count"`
	AvgDuration float64 `json:"avgDuration"`
	AvgPlayers  float64 `json:"avgPlayers"`
}

// SpellAnalytics holds the cast count of one spell
type SpellAnalytics struct {
	Spell string `json:"spell"`
	Count int    `json:"count"`
}
