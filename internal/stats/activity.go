package stats

import (
	"sort"

	"github.com/kagami-labs/kagami/internal/export"
)

var weekdayNames = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// Activity buckets every message into the 7x24 day/hour matrix, monthly
// and weekday counters, and per-year daily heatmaps.
func Activity(convs []export.Conversation) ActivityPattern {
	var heatmap [7][24]int
	var weekdayCounts [7]int
	monthly := make(map[string]int)

	type daily struct {
		counts map[string]int
		convs  map[string]map[string]struct{}
	}
	yearly := make(map[int]*daily)

	for i := range convs {
		conv := &convs[i]
		for j := range conv.Messages {
			t := msgTime(conv, &conv.Messages[j]).UTC()
			day := int(t.Weekday())
			heatmap[day][t.Hour()]++
			weekdayCounts[day]++
			monthly[t.Format("2006-01")]++

			year := t.Year()
			y, ok := yearly[year]
			if !ok {
				y = &daily{counts: make(map[string]int), convs: make(map[string]map[string]struct{})}
				yearly[year] = y
			}
			key := dateKey(t)
			y.counts[key]++
			if y.convs[key] == nil {
				y.convs[key] = make(map[string]struct{})
			}
			y.convs[key][conv.ID] = struct{}{}
		}
	}

	months := make([]MonthlyCount, 0, len(monthly))
	for month, count := range monthly {
		months = append(months, MonthlyCount{Month: month, Count: count})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })

	weekdays := make([]WeekdayCount, 7)
	for i, name := range weekdayNames {
		weekdays[i] = WeekdayCount{Day: name, DayIndex: i, Count: weekdayCounts[i]}
	}

	heatmaps := make([]YearlyHeatmap, 0, len(yearly))
	for year, y := range yearly {
		dailyConvs := make(map[string][]string, len(y.convs))
		for key, ids := range y.convs {
			list := make([]string, 0, len(ids))
			for id := range ids {
				list = append(list, id)
			}
			sort.Strings(list)
			dailyConvs[key] = list
		}
		heatmaps = append(heatmaps, YearlyHeatmap{
			Year:               year,
			DailyCounts:        y.counts,
			DailyConversations: dailyConvs,
		})
	}
	// Most recent year first.
	sort.Slice(heatmaps, func(i, j int) bool { return heatmaps[i].Year > heatmaps[j].Year })

	return ActivityPattern{
		HourlyHeatmap:       heatmap,
		MonthlyMessages:     months,
		WeekdayDistribution: weekdays,
		YearlyHeatmaps:      heatmaps,
	}
}
