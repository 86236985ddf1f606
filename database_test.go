package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBPlayers(t *testing.T) {
	db := openTestDB(t)

	id, err := db.CreatePlayer("alice", "hash")
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = db.CreatePlayer("alice", "other")
	assert.Error(t, err, "usernames are unique")

	p, err := db.GetPlayerByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "hash", p.PassHash)
	assert.False(t, p.IsGuest)

	p, err = db.GetPlayerByID(id + 100)
	assert.NoError(t, err)
	assert.Nil(t, p, "unknown ids return nil, nil")

	exists, err := db.UsernameExists("alice")
	require.NoError(t, err)
	assert.True(t, exists)

	gid, err := db.CreateGuest("guest_0001")
	require.NoError(t, err)
	g, err := db.GetPlayerByID(gid)
	require.NoError(t, err)
	assert.True(t, g.IsGuest)
	assert.Empty(t, g.PassHash)
}

func TestDBStatsAfterRound(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreatePlayer("bob", "h")
	require.NoError(t, err)

	s, err := db.GetStats(id)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, s.Level)
	assert.Zero(t, s.Rounds)

	xp, level, err := db.UpdateStatsAfterRound(RoundPlayerRow{
		PlayerID: id, Score: 800, Cleared: 40, SpellsCast: 3, JunkSent: 12, Won: true, XPEarned: 150,
	}, 95.5)
	require.NoError(t, err)
	assert.Equal(t, 150, xp)
	assert.Equal(t, CalculateLevel(150), level)

	_, _, err = db.UpdateStatsAfterRound(RoundPlayerRow{PlayerID: id, Score: 300, Cleared: 10, XPEarned: 20}, 30)
	require.NoError(t, err)

	s, err = db.GetStats(id)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Rounds)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 800, s.BestScore)
	assert.Equal(t, 1100, s.TotalScore)
	assert.Equal(t, 50, s.Cleared)
	assert.Equal(t, 3, s.SpellsCast)
	assert.Equal(t, 12, s.JunkSent)
	assert.InDelta(t, 125.5, s.Playtime, 1e-9)
	assert.Equal(t, 170, s.XP)

	missing, err := db.GetStats(id + 1)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLevelCurve(t *testing.T) {
	assert.Equal(t, 0, XPForLevel(1))
	assert.Equal(t, 100, XPForLevel(2))
	assert.Equal(t, 1, CalculateLevel(99))
	assert.Equal(t, 2, CalculateLevel(100))
	assert.Equal(t, 100, CalculateLevel(1<<40))
	for l := 2; l < 20; l++ {
		assert.Greater(t, XPForLevel(l+1), XPForLevel(l))
	}
}

func TestDBLeaderboard(t *testing.T) {
	db := openTestDB(t)
	a, _ := db.CreatePlayer("ann", "h")
	b, _ := db.CreatePlayer("ben", "h")
	g, _ := db.CreateGuest("guest_beef")

	db.UpdateStatsAfterRound(RoundPlayerRow{PlayerID: a, Score: 100, Won: true, XPEarned: 10}, 10)
	db.UpdateStatsAfterRound(RoundPlayerRow{PlayerID: b, Score: 900, XPEarned: 500}, 10)
	db.UpdateStatsAfterRound(RoundPlayerRow{PlayerID: g, Score: 5000, Won: true, XPEarned: 9000}, 10)

	byXP, err := db.GetLeaderboard("xp", 10)
	require.NoError(t, err)
	require.Len(t, byXP, 2, "guests stay off the leaderboard")
	assert.Equal(t, "ben", byXP[0].Username)
	assert.Equal(t, 1, byXP[0].Rank)
	assert.Equal(t, 2, byXP[1].Rank)

	byWins, err := db.GetLeaderboard("wins", 10)
	require.NoError(t, err)
	assert.Equal(t, "ann", byWins[0].Username)

	bogus, err := db.GetLeaderboard("score; DROP TABLE stats", 1)
	require.NoError(t, err)
	require.Len(t, bogus, 1)
	assert.Equal(t, "ben", bogus[0].Username, "unknown orderings fall back to xp")

	empty := openTestDB(t)
	none, err := empty.GetLeaderboard("xp", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestDBRoundHistory(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.CreatePlayer("cat", "h")

	r1, err := db.RecordRound("room-a", 60, 101, 2)
	require.NoError(t, err)
	r2, err := db.RecordRound("room-a", 45, 0, 2)
	require.NoError(t, err)
	require.NoError(t, db.RecordRoundPlayer(RoundPlayerRow{RoundID: r1, PlayerID: id, Team: 101, Score: 400, Level: 2, Won: true, XPEarned: 78}))
	require.NoError(t, db.RecordRoundPlayer(RoundPlayerRow{RoundID: r2, PlayerID: id, Team: 102, Score: 50, Level: 1, XPEarned: 21}))

	hist, err := db.GetRoundHistory(id, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, r2, hist[0].RoundID, "newest first")
	assert.True(t, hist[1].Won)
	assert.Equal(t, 400, hist[1].Score)

	assert.Error(t, db.RecordRoundPlayer(RoundPlayerRow{RoundID: r1, PlayerID: id}), "one line per account per round")
}

func TestDBAchievementsAndSettings(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.CreatePlayer("dee", "h")

	list, err := db.GetAchievements(id)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	isNew, err := db.UnlockAchievement(id, "victor")
	require.NoError(t, err)
	assert.True(t, isNew)
	isNew, err = db.UnlockAchievement(id, "victor")
	require.NoError(t, err)
	assert.False(t, isNew)

	list, _ = db.GetAchievements(id)
	assert.Equal(t, []string{"victor"}, list)

	assert.Empty(t, db.GetSetting("motd"))
	require.NoError(t, db.SetSetting("motd", "hi"))
	require.NoError(t, db.SetSetting("motd", "hello"))
	assert.Equal(t, "hello", db.GetSetting("motd"))
}

func TestCheckAchievements(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.CreatePlayer("eve", "h")

	round := Standing{Score: 6000, Cleared: 30, SpellsCast: 2}
	_, _, err := db.UpdateStatsAfterRound(RoundPlayerRow{PlayerID: id, Score: round.Score, Cleared: round.Cleared, SpellsCast: round.SpellsCast}, 20)
	require.NoError(t, err)

	got := CheckAchievements(db, id, round)
	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"first_pop", "high_roller"}, ids)

	assert.Empty(t, CheckAchievements(db, id, round), "achievements unlock once")
	assert.Nil(t, CheckAchievements(nil, id, round))
}

func TestAchievementRulesCoverEveryDef(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range Achievements {
		assert.False(t, seen[def.ID], "duplicate achievement %s", def.ID)
		seen[def.ID] = true
		assert.NotNil(t, achievementRules[def.ID], "no rule for %s", def.ID)
	}
	assert.Len(t, achievementRules, len(Achievements))
}
