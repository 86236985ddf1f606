package main

import (
	"sort"

	"marbleous-server/engine"
)

// RoomPhase represents the lifecycle of a room
type RoomPhase int

const (
	PhaseWaiting RoomPhase = 0
	PhasePlaying RoomPhase = 1
	PhaseResult  RoomPhase = 2
)

func (p RoomPhase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhasePlaying:
		return "playing"
	case PhaseResult:
		return "result"
	}
	return "unknown"
}

// Teams 1..maxTeam are picked by players. Every other seat gets its own team
// number above maxTeam, so a lone player is a side of one.
const (
	TeamNone      = 0
	maxTeam       = 4
	firstSoloTeam = 100
)

// XP rewards
const (
	xpPerRound = 20
	xpWin      = 50
	xpPerSpell = 5
	scorePerXP = 50 // one XP per this many points
	maxRoundXP = 1000
)

// IsSoloTeam reports whether team is an auto-assigned single seat
func IsSoloTeam(team int) bool {
	return team > maxTeam
}

// livingTeams returns the distinct teams that still have a living board
func livingTeams(boards []*engine.Board) map[int]bool {
	out := make(map[int]bool)
	for _, b := range boards {
		if b.Alive {
			out[b.Team] = true
		}
	}
	return out
}

// countTeams returns the number of distinct teams seated in boards
func countTeams(boards []*engine.Board) int {
	seen := make(map[int]bool)
	for _, b := range boards {
		seen[b.Team] = true
	}
	return len(seen)
}

// roundOver reports whether play should stop. A contested round ends when at
// most one team is left alive; a single-team round ends when it is wiped out.
func roundOver(boards []*engine.Board, startTeams int) bool {
	alive := len(livingTeams(boards))
	if startTeams <= 1 {
		return alive == 0
	}
	return alive <= 1
}

// winningTeam picks the surviving team, or the highest scoring one when
// nobody survived. A tie for the top score has no winner.
func winningTeam(boards []*engine.Board) (int, bool) {
	for team := range livingTeams(boards) {
		return team, true
	}
	scores := make(map[int]int)
	for _, b := range boards {
		scores[b.Team] += b.Score
	}
	best, bestScore, tie := TeamNone, -1, false
	for team, sc := range scores {
		switch {
		case sc > bestScore:
			best, bestScore, tie = team, sc, false
		case sc == bestScore:
			tie = true
		}
	}
	if best == TeamNone || tie {
		return TeamNone, false
	}
	return best, true
}

// RoundXP returns the account XP earned for one round
func RoundXP(score, spellsCast int, won bool) int {
	xp := xpPerRound + score/scorePerXP + spellsCast*xpPerSpell
	if won {
		xp += xpWin
	}
	if xp > maxRoundXP {
		xp = maxRoundXP
	}
	return xp
}

// sortStandings orders winners first, then by score
func sortStandings(s []Standing) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Won != s[j].Won {
			return s[i].Won
		}
		return s[i].Score > s[j].Score
	})
}
