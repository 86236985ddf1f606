package main

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	log  *zap.Logger
}

// PlayerRow represents an account
type PlayerRow struct {
	ID        int64
	Username  string
	PassHash  string
	IsGuest   bool
	CreatedAt time.Time
}

// StatsRow holds an account's lifetime totals
type StatsRow struct {
	PlayerID   int64
	Rounds     int
	Wins       int
	Losses     int
	BestScore  int
	TotalScore int
	Cleared    int
	SpellsCast int
	JunkSent   int
	Playtime   float64 // seconds
	XP         int
	Level      int
}

// RoundPlayerRow represents an account's line in a finished round
type RoundPlayerRow struct {
	RoundID    int64
	PlayerID   int64
	Team       int
	Score      int
	Level      int
	Cleared    int
	SpellsCast int
	JunkSent   int
	Won        bool
	XPEarned   int
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	Username  string `json:"username"`
	Level     int    `json:"level"`
	XP        int    `json:"xp"`
	Rounds    int    `json:"rounds"`
	Wins      int    `json:"wins"`
	BestScore int    `json:"bestScore"`
	Cleared   int    `json:"cleared"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string, logger *zap.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one writer; pragmas below then hold for every statement
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn, log: logger}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		is_guest INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats (
		player_id INTEGER PRIMARY KEY REFERENCES players(id),
		rounds INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		best_score INTEGER NOT NULL DEFAULT 0,
		total_score INTEGER NOT NULL DEFAULT 0,
		cleared INTEGER NOT NULL DEFAULT 0,
		spells_cast INTEGER NOT NULL DEFAULT 0,
		junk_sent INTEGER NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0,
		xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS rounds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room TEXT NOT NULL DEFAULT '',
		duration REAL NOT NULL DEFAULT 0,
		winner_team INTEGER NOT NULL DEFAULT 0,
		players INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS round_players (
		round_id INTEGER NOT NULL REFERENCES rounds(id),
		player_id INTEGER NOT NULL REFERENCES players(id),
		team INTEGER NOT NULL DEFAULT 0,
		score INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		cleared INTEGER NOT NULL DEFAULT 0,
		spells_cast INTEGER NOT NULL DEFAULT 0,
		junk_sent INTEGER NOT NULL DEFAULT 0,
		won INTEGER NOT NULL DEFAULT 0,
		xp_earned INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (round_id, player_id)
	);

	CREATE TABLE IF NOT EXISTS achievements (
		player_id INTEGER NOT NULL REFERENCES players(id),
		achievement_id TEXT NOT NULL,
		unlocked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (player_id, achievement_id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id INTEGER,
		room_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_round_players_player ON round_players(player_id);
	CREATE INDEX IF NOT EXISTS idx_analytics_type_time ON analytics_events(event_type, created_at);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		db.log.Error("db migration", zap.Error(err))
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (db *DB) insertPlayer(username, passHash string, guest bool) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO players (username, pass_hash, is_guest) VALUES (?, ?, ?)",
		username, passHash, guest,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec("INSERT INTO stats (player_id) VALUES (?)", id); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// CreatePlayer creates a new account (returns player ID)
func (db *DB) CreatePlayer(username, passHash string) (int64, error) {
	return db.insertPlayer(username, passHash, false)
}

// CreateGuest creates a guest account with no password
func (db *DB) CreateGuest(username string) (int64, error) {
	return db.insertPlayer(username, "", true)
}

func (db *DB) scanPlayer(row *sql.Row) (*PlayerRow, error) {
	p := &PlayerRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.IsGuest, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPlayerByUsername returns a player by username, or nil
func (db *DB) GetPlayerByUsername(username string) (*PlayerRow, error) {
	return db.scanPlayer(db.conn.QueryRow(
		"SELECT id, username, pass_hash, is_guest, created_at FROM players WHERE username = ?",
		username,
	))
}

// GetPlayerByID returns a player by ID, or nil
func (db *DB) GetPlayerByID(id int64) (*PlayerRow, error) {
	return db.scanPlayer(db.conn.QueryRow(
		"SELECT id, username, pass_hash, is_guest, created_at FROM players WHERE id = ?",
		id,
	))
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetStats returns lifetime stats, or nil for an unknown player
func (db *DB) GetStats(playerID int64) (*StatsRow, error) {
	row := db.conn.QueryRow(`
		SELECT player_id, rounds, wins, losses, best_score, total_score,
			cleared, spells_cast, junk_sent, playtime, xp, level
		FROM stats WHERE player_id = ?`,
		playerID,
	)
	s := &StatsRow{}
	err := row.Scan(&s.PlayerID, &s.Rounds, &s.Wins, &s.Losses, &s.BestScore, &s.TotalScore,
		&s.Cleared, &s.SpellsCast, &s.JunkSent, &s.Playtime, &s.XP, &s.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// XPForLevel returns the total XP required to reach a given level.
// Level 1 requires 0 XP, level 2 requires 100, etc.
// Formula: sum of 100 * i^1.5 for i in 1..level-1
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	total := 0.0
	for i := 1; i < level; i++ {
		total += 100.0 * math.Pow(float64(i), 1.5)
	}
	return int(total)
}

// CalculateLevel returns the level for a given total XP amount, capped at 100
func CalculateLevel(totalXP int) int {
	level := 1
	for level < 100 && totalXP >= XPForLevel(level+1) {
		level++
	}
	return level
}

// UpdateStatsAfterRound folds one round into the account totals and returns
// the new (xp, level)
func (db *DB) UpdateStatsAfterRound(r RoundPlayerRow, duration float64) (int, int, error) {
	win, loss := 0, 1
	if r.Won {
		win, loss = 1, 0
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE stats SET
			rounds = rounds + 1,
			wins = wins + ?,
			losses = losses + ?,
			best_score = MAX(best_score, ?),
			total_score = total_score + ?,
			cleared = cleared + ?,
			spells_cast = spells_cast + ?,
			junk_sent = junk_sent + ?,
			playtime = playtime + ?,
			xp = xp + ?
		WHERE player_id = ?`,
		win, loss, r.Score, r.Score, r.Cleared, r.SpellsCast, r.JunkSent, duration, r.XPEarned, r.PlayerID,
	)
	if err != nil {
		return 0, 0, err
	}

	var totalXP int
	if err := tx.QueryRow("SELECT xp FROM stats WHERE player_id = ?", r.PlayerID).Scan(&totalXP); err != nil {
		return 0, 0, err
	}
	level := CalculateLevel(totalXP)
	if _, err := tx.Exec("UPDATE stats SET level = ? WHERE player_id = ?", level, r.PlayerID); err != nil {
		return 0, 0, err
	}
	return totalXP, level, tx.Commit()
}

// leaderboardCols whitelists the orderings GetLeaderboard accepts
var leaderboardCols = map[string]string{
	"xp":      "s.xp",
	"level":   "s.level",
	"wins":    "s.wins",
	"best":    "s.best_score",
	"cleared": "s.cleared",
	"rounds":  "s.rounds",
	"winrate": "CASE WHEN s.rounds > 0 THEN CAST(s.wins AS REAL)/s.rounds ELSE 0 END",
}

// GetLeaderboard returns top non-guest players sorted by the given field
func (db *DB) GetLeaderboard(orderBy string, limit int) ([]LeaderboardEntry, error) {
	col, ok := leaderboardCols[orderBy]
	if !ok {
		col = leaderboardCols["xp"]
	}

	query := `SELECT p.username, s.level, s.xp, s.rounds, s.wins, s.best_score, s.cleared
		FROM stats s JOIN players p ON p.id = s.player_id
		WHERE p.is_guest = 0
		ORDER BY ` + col + ` DESC, p.id ASC LIMIT ?`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Level, &e.XP, &e.Rounds, &e.Wins, &e.BestScore, &e.Cleared); err != nil {
			return nil, err
		}
		e.Rank = len(result) + 1
		result = append(result, e)
	}
	return result, rows.Err()
}

// RecordRound records a finished round and returns its ID
func (db *DB) RecordRound(room string, duration float64, winnerTeam, players int) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO rounds (room, duration, winner_team, players) VALUES (?, ?, ?, ?)",
		room, duration, winnerTeam, players,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordRoundPlayer records an account's line in a round
func (db *DB) RecordRoundPlayer(r RoundPlayerRow) error {
	_, err := db.conn.Exec(
		`INSERT INTO round_players (round_id, player_id, team, score, level, cleared, spells_cast, junk_sent, won, xp_earned)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RoundID, r.PlayerID, r.Team, r.Score, r.Level, r.Cleared, r.SpellsCast, r.JunkSent, r.Won, r.XPEarned,
	)
	return err
}

// GetRoundHistory returns an account's most recent rounds, newest first
func (db *DB) GetRoundHistory(playerID int64, limit int) ([]RoundPlayerRow, error) {
	rows, err := db.conn.Query(`
		SELECT rp.round_id, rp.player_id, rp.team, rp.score, rp.level, rp.cleared,
			rp.spells_cast, rp.junk_sent, rp.won, rp.xp_earned
		FROM round_players rp
		JOIN rounds r ON r.id = rp.round_id
		WHERE rp.player_id = ?
		ORDER BY r.id DESC
		LIMIT ?`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RoundPlayerRow
	for rows.Next() {
		var r RoundPlayerRow
		if err := rows.Scan(&r.RoundID, &r.PlayerID, &r.Team, &r.Score, &r.Level, &r.Cleared,
			&r.SpellsCast, &r.JunkSent, &r.Won, &r.XPEarned); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetAchievements returns the achievement IDs an account has unlocked
func (db *DB) GetAchievements(playerID int64) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT achievement_id FROM achievements WHERE player_id = ? ORDER BY unlocked_at, achievement_id",
		playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

// UnlockAchievement records an achievement and reports whether it is new
func (db *DB) UnlockAchievement(playerID int64, achievementID string) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT OR IGNORE INTO achievements (player_id, achievement_id) VALUES (?, ?)",
		playerID, achievementID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetSetting returns a stored setting, or "" when unset
func (db *DB) GetSetting(key string) string {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		db.log.Warn("read setting", zap.String("key", key), zap.Error(err))
	}
	return v
}

// SetSetting stores a setting, replacing any previous value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
