package calendar

import (
	"time"

	"go.uber.org/zap"
)

// PeakWindow is a date range with elevated load, e.g. Ramadan/Lebaran or the
// 12.12 Harbolnas retail season. During a peak window the orchestrator
// throttles harder by the window's factor.
type PeakWindow struct {
	Name   string
	Start  time.Time
	End    time.Time
	Factor float64
	// Observance marks religious observance windows; timing conflicts
	// detected inside one defer processing instead of forcing a decision
	Observance bool
}

// Contains reports whether t falls inside the window
func (w PeakWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// RegionConfig describes the operational calendar for one region
type RegionConfig struct {
	Timezone  string
	WorkDays  []time.Weekday
	OpenHour  int
	CloseHour int
	Holidays  []string // "2006-01-02" in the region's timezone
	Peaks     []PeakWindow
}

// DefaultRegionConfig returns the Indonesian default calendar
func DefaultRegionConfig() RegionConfig {
	return RegionConfig{
		Timezone:  "Asia/Jakarta",
		WorkDays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		OpenHour:  8,
		CloseHour: 21,
	}
}

// Gate decides whether an operation may run now, later, or throttled, based on
// region-specific operational windows and seasonal factors. All answers are
// pure functions of the configured calendar and the given timestamp.
type Gate struct {
	regions       map[string]RegionConfig
	defaultRegion RegionConfig
	logger        *zap.Logger
}

// NewGate creates a calendar gate. Unknown regions fall back to defaultCfg.
func NewGate(regions map[string]RegionConfig, defaultCfg RegionConfig, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		regions:       regions,
		defaultRegion: defaultCfg,
		logger:        logger,
	}
}

// NewDefaultGate creates a gate with only the Indonesian default calendar
func NewDefaultGate(logger *zap.Logger) *Gate {
	return NewGate(nil, DefaultRegionConfig(), logger)
}

func (g *Gate) regionConfig(region string) RegionConfig {
	if cfg, ok := g.regions[region]; ok {
		return cfg
	}
	return g.defaultRegion
}

func (g *Gate) localTime(cfg RegionConfig, t time.Time) time.Time {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		g.logger.Warn("unknown calendar timezone, using UTC", zap.String("timezone", cfg.Timezone))
		loc = time.UTC
	}
	return t.In(loc)
}

// IsOperationalWindow reports whether t falls within the region's business
// hours on a working, non-holiday day
func (g *Gate) IsOperationalWindow(region string, t time.Time) bool {
	cfg := g.regionConfig(region)
	local := g.localTime(cfg, t)

	if !isWorkDay(cfg.WorkDays, local.Weekday()) {
		return false
	}
	if isHoliday(cfg.Holidays, local) {
		return false
	}
	h := local.Hour()
	return h >= cfg.OpenHour && h < cfg.CloseHour
}

// SeasonalFactor returns the throttling factor for t (1.0 outside peaks) and
// the name of the active peak window, if any
func (g *Gate) SeasonalFactor(region string, t time.Time) (float64, string) {
	cfg := g.regionConfig(region)
	local := g.localTime(cfg, t)
	for _, w := range cfg.Peaks {
		if w.Contains(local) {
			f := w.Factor
			if f <= 0 {
				f = 1.5
			}
			return f, w.Name
		}
	}
	return 1.0, ""
}

// IsObservanceWindow reports whether t falls within a religious observance
// peak window for the region
func (g *Gate) IsObservanceWindow(region string, t time.Time) bool {
	cfg := g.regionConfig(region)
	local := g.localTime(cfg, t)
	for _, w := range cfg.Peaks {
		if w.Observance && w.Contains(local) {
			return true
		}
	}
	return false
}

// NextOperationalTime returns the earliest instant at or after t that falls
// within the region's operational window
func (g *Gate) NextOperationalTime(region string, t time.Time) time.Time {
	cfg := g.regionConfig(region)
	local := g.localTime(cfg, t)

	// Bounded scan: two weeks covers any run of holidays plus a weekend
	for i := 0; i < 14; i++ {
		day := local.AddDate(0, 0, i)
		if !isWorkDay(cfg.WorkDays, day.Weekday()) || isHoliday(cfg.Holidays, day) {
			continue
		}
		openAt := time.Date(day.Year(), day.Month(), day.Day(), cfg.OpenHour, 0, 0, 0, day.Location())
		closeAt := time.Date(day.Year(), day.Month(), day.Day(), cfg.CloseHour, 0, 0, 0, day.Location())
		if i == 0 && !local.Before(openAt) && local.Before(closeAt) {
			return local
		}
		if openAt.After(local) {
			return openAt
		}
	}
	return local
}

func isWorkDay(workDays []time.Weekday, d time.Weekday) bool {
	for _, w := range workDays {
		if w == d {
			return true
		}
	}
	return false
}

func isHoliday(holidays []string, local time.Time) bool {
	key := local.Format("2006-01-02")
	for _, h := range holidays {
		if h == key {
			return true
		}
	}
	return false
}
