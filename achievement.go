package main

// AchievementDef describes one unlockable achievement
type AchievementDef struct {
	ID          string
	Name        string
	Description string
}

var Achievements = []AchievementDef{
	{"first_pop", "First Pop", "Clear your first bubbles"},
	{"sweeper", "Sweeper", "Clear 1000 bubbles in total"},
	{"demolisher", "Demolisher", "Clear 10000 bubbles in total"},
	{"high_roller", "High Roller", "Score 5000 points in a single round"},
	{"spellslinger", "Spellslinger", "Cast 10 spells in a single round"},
	{"archmage", "Archmage", "Cast 250 spells in total"},
	{"avalanche", "Avalanche", "Send 100 junk bubbles in a single round"},
	{"victor", "Victor", "Win 10 rounds"},
	{"veteran", "Veteran", "Reach level 10"},
	{"elite", "Elite", "Reach level 25"},
	{"legend", "Legend", "Reach level 50"},
	{"marathon", "Marathon", "Play for 1 hour total"},
}

// achievementRules decide each achievement from lifetime stats and the round
// just played
var achievementRules = map[string]func(s *StatsRow, round Standing) bool{
	"first_pop":    func(s *StatsRow, _ Standing) bool { return s.Cleared >= 1 },
	"sweeper":      func(s *StatsRow, _ Standing) bool { return s.Cleared >= 1000 },
	"demolisher":   func(s *StatsRow, _ Standing) bool { return s.Cleared >= 10000 },
	"high_roller":  func(_ *StatsRow, r Standing) bool { return r.Score >= 5000 },
	"spellslinger": func(_ *StatsRow, r Standing) bool { return r.SpellsCast >= 10 },
	"archmage":     func(s *StatsRow, _ Standing) bool { return s.SpellsCast >= 250 },
	"avalanche":    func(_ *StatsRow, r Standing) bool { return r.JunkSent >= 100 },
	"victor":       func(s *StatsRow, _ Standing) bool { return s.Wins >= 10 },
	"veteran":      func(s *StatsRow, _ Standing) bool { return s.Level >= 10 },
	"elite":        func(s *StatsRow, _ Standing) bool { return s.Level >= 25 },
	"legend":       func(s *StatsRow, _ Standing) bool { return s.Level >= 50 },
	"marathon":     func(s *StatsRow, _ Standing) bool { return s.Playtime >= 3600 },
}

// CheckAchievements unlocks whatever the player has newly earned after round
// and returns those achievements. Call it after the round's stats are saved.
func CheckAchievements(db *DB, playerID int64, round Standing) []AchievementDef {
	if db == nil {
		return nil
	}

	stats, err := db.GetStats(playerID)
	if err != nil || stats == nil {
		return nil
	}

	existing, err := db.GetAchievements(playerID)
	if err != nil {
		return nil
	}
	has := make(map[string]bool, len(existing))
	for _, a := range existing {
		has[a] = true
	}

	var unlocked []AchievementDef
	for _, def := range Achievements {
		rule := achievementRules[def.ID]
		if has[def.ID] || rule == nil || !rule(stats, round) {
			continue
		}
		if isNew, err := db.UnlockAchievement(playerID, def.ID); err == nil && isNew {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked
}
