package rag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

var dayAliases = map[string]domain.Weekday{
	"mon": domain.Mon, "monday": domain.Mon, "senin": domain.Mon,
	"tue": domain.Tue, "tues": domain.Tue, "tuesday": domain.Tue, "selasa": domain.Tue,
	"wed": domain.Wed, "wednesday": domain.Wed, "rabu": domain.Wed,
	"thu": domain.Thu, "thur": domain.Thu, "thurs": domain.Thu, "thursday": domain.Thu, "kamis": domain.Thu,
	"fri": domain.Fri, "friday": domain.Fri, "jumat": domain.Fri, "jum'at": domain.Fri,
	"sat": domain.Sat, "saturday": domain.Sat, "sabtu": domain.Sat,
	"sun": domain.Sun, "sunday": domain.Sun, "minggu": domain.Sun, "ahad": domain.Sun,
}

// NormalizeWeekday maps English or Indonesian day names onto Mon..Sun.
func NormalizeWeekday(raw string) (domain.Weekday, bool) {
	d, ok := dayAliases[strings.ToLower(strings.TrimSpace(raw))]
	return d, ok
}

type rawCalendarEntry struct {
	Day    string `json:"day"`
	Lunch  string `json:"lunch"`
	Dinner string `json:"dinner"`
}

// ParseCalendar decodes extraction output into calendar entries. Code fences
// and surrounding prose are stripped and near-JSON is repaired. Unknown
// days are dropped, the first entry per day wins and entries are ordered
// Mon..Sun. Failure matches errors.ErrExtractionParse.
func ParseCalendar(raw string) ([]domain.CalendarEntry, error) {
	payload := stripCodeFence(raw)
	start := strings.Index(payload, "[")
	end := strings.LastIndex(payload, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array in output", apperrors.ErrExtractionParse)
	}
	payload = payload[start : end+1]

	var entries []rawCalendarEntry
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(payload)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionParse, err)
		}
		if err := json.Unmarshal([]byte(repaired), &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionParse, err)
		}
	}

	seen := make(map[domain.Weekday]bool, len(domain.Weekdays))
	out := make([]domain.CalendarEntry, 0, len(entries))
	for _, e := range entries {
		day, ok := NormalizeWeekday(e.Day)
		if !ok || seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, domain.CalendarEntry{
			Day:    day,
			Lunch:  strings.TrimSpace(e.Lunch),
			Dinner: strings.TrimSpace(e.Dinner),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day.Index() < out[j].Day.Index() })
	return out, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
