package engine

import (
	"fmt"
	"time"
)

// QueueEnd selects which end of a spell queue an operation reads from
type QueueEnd int

const (
	QueueBack  QueueEnd = 0 // newest entry
	QueueFront QueueEnd = 1 // oldest entry
)

// Color is one palette entry
type Color struct {
	Main   string `json:"main" msgpack:"main"`
	Shadow string `json:"shadow" msgpack:"shadow"`
}

// Config holds every tunable constant of the engine
type Config struct {
	Rows        int
	Cols        int
	GameOverRow int
	MaxSpells   int
	MatchSize   int

	Palette     []Color
	ColorSpells map[ColorID]SpellKind

	SpellSpawnChance float64
	InitialFill      float64 // per-cell presence in rows 1-2 at round start
	InjectionFill    float64 // per-cell presence in the injected top row

	EffectDuration time.Duration
	NukeMin        float64
	NukeMax        float64
	RecolorMin     float64
	RecolorMax     float64
	HarvestMinRows int
	HarvestMaxRows int
	TiltMinDeg     float64
	TiltMaxDeg     float64

	AttackUnit     int
	AttackInterval time.Duration
	LevelInterval  time.Duration

	ScorePerBubble int
	BubbleRadius   float64

	CastFrom  QueueEnd
	StripFrom QueueEnd

	LauncherRecolorEvery time.Duration
	AutoFireMin          time.Duration
	AutoFireJitter       time.Duration
}

// Palette indexes, in DefaultConfig order
const (
	ColorRed ColorID = iota
	ColorYellow
	ColorGreen
	ColorCyan
	ColorBlue
	ColorPurple
	ColorGrey
)

// DefaultConfig returns the standard game configuration
func DefaultConfig() Config {
	return Config{
		Rows:        14,
		Cols:        8,
		GameOverRow: 11,
		MaxSpells:   8,
		MatchSize:   3,
		Palette: []Color{
			{Main: "#c62b39", Shadow: "#69050d"},
			{Main: "#ffd304", Shadow: "#957e18"},
			{Main: "#3bda0e", Shadow: "#108209"},
			{Main: "#3ee2ee", Shadow: "#2babb4"},
			{Main: "#5c68de", Shadow: "#18169b"},
			{Main: "#af00c1", Shadow: "#860094"},
			{Main: "#d8d6db", Shadow: "#636b60"},
		},
		ColorSpells: map[ColorID]SpellKind{
			ColorRed:    SpellTilt,
			ColorYellow: SpellBrokenLauncher,
			ColorGreen:  SpellStrip,
			ColorCyan:   SpellRecolorAll,
			ColorBlue:   SpellRowInjection,
			ColorPurple: SpellNuke,
			ColorGrey:   SpellRecolorSubset,
		},
		SpellSpawnChance: 0.5,
		InitialFill:      0.7,
		InjectionFill:    0.7,

		EffectDuration: 10 * time.Second,
		NukeMin:        0.3,
		NukeMax:        0.8,
		RecolorMin:     0.3,
		RecolorMax:     0.6,
		HarvestMinRows: 2,
		HarvestMaxRows: 3,
		TiltMinDeg:     10,
		TiltMaxDeg:     40,

		AttackUnit:     10,
		AttackInterval: 8 * time.Second,
		LevelInterval:  30 * time.Second,

		ScorePerBubble: 10,
		BubbleRadius:   20,

		CastFrom:  QueueBack,
		StripFrom: QueueFront,

		LauncherRecolorEvery: 500 * time.Millisecond,
		AutoFireMin:          2 * time.Second,
		AutoFireJitter:       2 * time.Second,
	}
}

// Validate reports the first inconsistent value in the configuration
func (c Config) Validate() error {
	switch {
	case c.Rows < 2 || c.Cols < 2:
		return fmt.Errorf("grid must be at least 2x2, got %dx%d", c.Rows, c.Cols)
	case c.GameOverRow <= 0 || c.GameOverRow >= c.Rows:
		return fmt.Errorf("game over row %d outside (0,%d)", c.GameOverRow, c.Rows)
	case c.MaxSpells < 0:
		return fmt.Errorf("max spells must be non-negative, got %d", c.MaxSpells)
	case c.MatchSize < 2:
		return fmt.Errorf("match size must be at least 2, got %d", c.MatchSize)
	case len(c.Palette) == 0:
		return fmt.Errorf("palette is empty")
	case c.NukeMin < 0 || c.NukeMax > 1 || c.NukeMin > c.NukeMax:
		return fmt.Errorf("nuke range [%v,%v] invalid", c.NukeMin, c.NukeMax)
	case c.RecolorMin < 0 || c.RecolorMax > 1 || c.RecolorMin > c.RecolorMax:
		return fmt.Errorf("recolor range [%v,%v] invalid", c.RecolorMin, c.RecolorMax)
	case c.HarvestMinRows < 1 || c.HarvestMinRows > c.HarvestMaxRows:
		return fmt.Errorf("harvest rows %d..%d invalid", c.HarvestMinRows, c.HarvestMaxRows)
	case c.AttackUnit <= 0:
		return fmt.Errorf("attack unit must be positive, got %d", c.AttackUnit)
	case c.BubbleRadius <= 0:
		return fmt.Errorf("bubble radius must be positive, got %v", c.BubbleRadius)
	}
	for id := range c.ColorSpells {
		if int(id) < 0 || int(id) >= len(c.Palette) {
			return fmt.Errorf("spell mapped to unknown color %d", id)
		}
	}
	return nil
}
