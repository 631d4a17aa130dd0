package calendar

import (
	"strings"
	"time"

	"github.com/ordersync/backend/internal/infrastructure/config"
)

// FromConfig builds a region calendar from the application configuration.
// Peak window dates are interpreted in the configured timezone; the end date
// is inclusive. Malformed windows are dropped.
func FromConfig(cfg config.CalendarConfig) RegionConfig {
	rc := DefaultRegionConfig()
	if cfg.Timezone != "" {
		rc.Timezone = cfg.Timezone
	}
	if cfg.OpenHour > 0 {
		rc.OpenHour = cfg.OpenHour
	}
	if cfg.CloseHour > 0 {
		rc.CloseHour = cfg.CloseHour
	}
	if days := parseWorkDays(cfg.WorkDays); len(days) > 0 {
		rc.WorkDays = days
	}

	loc, err := time.LoadLocation(rc.Timezone)
	if err != nil {
		loc = time.UTC
	}
	for _, w := range cfg.PeakWindows {
		start, err := time.ParseInLocation("2006-01-02", w.Start, loc)
		if err != nil {
			continue
		}
		end, err := time.ParseInLocation("2006-01-02", w.End, loc)
		if err != nil {
			continue
		}
		rc.Peaks = append(rc.Peaks, PeakWindow{
			Name:       w.Name,
			Start:      start,
			End:        end.AddDate(0, 0, 1),
			Factor:     w.Factor,
			Observance: w.Observance,
		})
	}
	return rc
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

func parseWorkDays(names []string) []time.Weekday {
	var days []time.Weekday
	for _, n := range names {
		key := strings.ToLower(n)
		if len(key) > 3 {
			key = key[:3]
		}
		if d, ok := weekdayNames[key]; ok {
			days = append(days, d)
		}
	}
	return days
}
