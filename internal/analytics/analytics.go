// Package analytics computes derived mood statistics: period stats,
// streaks, trends, weekday aggregates and tag correlations. All
// functions are pure and safe for concurrent use; they expect entries
// ordered by date descending, the order the entry store returns.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/miro2468/MoodTracker-Bot/internal/model"
)

// ErrInsufficientData is returned when there are not enough entries to
// compute a signal, as opposed to a computation that found no signal.
var ErrInsufficientData = errors.New("not enough entries for analysis")

// Trend classifies the direction of recent mood.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
)

// trendThreshold is the minimum average delta between the recent and
// the previous window to call a trend.
const trendThreshold = 0.3

// trendWindow is how many entries each comparison window holds.
const trendWindow = 7

// minInsightEntries is the minimum history for GenerateInsights.
const minInsightEntries = 7

// positiveScore is the lowest score counted as a positive entry.
const positiveScore = 4

// TagCount is a tag name with its usage count over a period.
type TagCount struct {
	Name  string
	Count int
}

// Stats summarizes a user's mood over an inclusive date range.
// BestDay/WorstDay are nil when the range holds no entries.
type Stats struct {
	Period       string
	AverageMood  float64
	TotalEntries int
	BestDay      *time.Time
	WorstDay     *time.Time
	TopTags      []TagCount
}

// Pattern describes how a tag correlates with mood. Correlation is the
// tag's average mood minus the user's overall average mood.
type Pattern struct {
	TagName       string
	Correlation   float64
	PositiveCount int
	TotalCount    int
}

// WeekdayStat aggregates mood for one weekday. Count == 0 means no
// data for that day.
type WeekdayStat struct {
	Average float64
	Count   int
}

// Insights bundles the headline numbers for a user with enough history.
type Insights struct {
	Trend         Trend
	RecentAverage float64
	BestWeekday   time.Weekday
	TotalEntries  int
	Streak        int
}

// ComputeStats filters entries to [start, end] and aggregates them.
// Best/worst day pick the date with the highest/lowest per-day average;
// on a tie the earliest date wins. Top tags are the five most used tag
// names, count descending, name ascending on equal counts. An empty
// range yields zero stats with TotalEntries == 0.
func ComputeStats(entries []model.MoodEntry, tagged []model.TaggedEntry, start, end time.Time) (Stats, error) {
	start, end = dateOnly(start), dateOnly(end)
	if end.Before(start) {
		return Stats{}, fmt.Errorf("invalid range: end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	stats := Stats{
		Period: fmt.Sprintf("%s - %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
	}

	var sum int
	dayScores := make(map[time.Time][]int)
	for _, e := range entries {
		day := e.Day()
		if day.Before(start) || day.After(end) {
			continue
		}
		stats.TotalEntries++
		sum += e.MoodScore
		dayScores[day] = append(dayScores[day], e.MoodScore)
	}

	if stats.TotalEntries == 0 {
		return stats, nil
	}

	stats.AverageMood = round1(float64(sum) / float64(stats.TotalEntries))

	days := make([]time.Time, 0, len(dayScores))
	for day := range dayScores {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var best, worst time.Time
	bestAvg, worstAvg := math.Inf(-1), math.Inf(1)
	for _, day := range days {
		scores := dayScores[day]
		var daySum int
		for _, s := range scores {
			daySum += s
		}
		avg := float64(daySum) / float64(len(scores))
		if avg > bestAvg {
			bestAvg, best = avg, day
		}
		if avg < worstAvg {
			worstAvg, worst = avg, day
		}
	}
	stats.BestDay = &best
	stats.WorstDay = &worst

	counts := make(map[string]int)
	for _, te := range tagged {
		day := te.Entry.Day()
		if day.Before(start) || day.After(end) {
			continue
		}
		counts[te.Tag.Name]++
	}
	stats.TopTags = topTags(counts, 5)

	return stats, nil
}

// ComputeStreak counts consecutive calendar days with at least one
// entry, walking back from today. The first day without an entry ends
// the streak; multiple entries on one day count once.
func ComputeStreak(entries []model.MoodEntry, today time.Time) int {
	if len(entries) == 0 {
		return 0
	}

	seen := make(map[time.Time]bool, len(entries))
	for _, e := range entries {
		seen[e.Day()] = true
	}

	streak := 0
	for day := dateOnly(today); seen[day]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// ComputeTrend compares the mean of the 7 most recent entries against
// the mean of the 7 before them. With fewer than 14 entries the older
// window collapses to the recent average and the trend is stable.
func ComputeTrend(entries []model.MoodEntry) Trend {
	if len(entries) == 0 {
		return TrendStable
	}

	recent := windowAverage(entries, 0, trendWindow)
	older := recent
	if len(entries) >= 2*trendWindow {
		older = windowAverage(entries, trendWindow, 2*trendWindow)
	}

	switch {
	case recent-older > trendThreshold:
		return TrendImproving
	case recent-older < -trendThreshold:
		return TrendWorsening
	default:
		return TrendStable
	}
}

// ComputeWeekdayStats groups entries by weekday, Monday first. Every
// weekday is present in the result; days without entries have Count 0.
func ComputeWeekdayStats(entries []model.MoodEntry) [7]WeekdayStat {
	var sums, counts [7]int
	for _, e := range entries {
		idx := weekdayIndex(e.Day().Weekday())
		sums[idx] += e.MoodScore
		counts[idx]++
	}

	var out [7]WeekdayStat
	for i := range out {
		out[i].Count = counts[i]
		if counts[i] > 0 {
			out[i].Average = round1(float64(sums[i]) / float64(counts[i]))
		}
	}
	return out
}

// ComputePatterns correlates tags with mood. The overall average is
// computed once over all entries; tags with fewer than minEntries
// tagged entries are dropped as statistically unreliable. The result
// is ordered by absolute correlation descending, then tag name.
func ComputePatterns(entries []model.MoodEntry, tagged []model.TaggedEntry, minEntries int) []Pattern {
	if len(entries) == 0 {
		return nil
	}
	if minEntries < 1 {
		minEntries = 1
	}

	var overallSum int
	for _, e := range entries {
		overallSum += e.MoodScore
	}
	overallAvg := float64(overallSum) / float64(len(entries))

	type tagAgg struct {
		sum, count, positive int
	}
	aggs := make(map[string]*tagAgg)
	for _, te := range tagged {
		agg := aggs[te.Tag.Name]
		if agg == nil {
			agg = &tagAgg{}
			aggs[te.Tag.Name] = agg
		}
		agg.sum += te.Entry.MoodScore
		agg.count++
		if te.Entry.MoodScore >= positiveScore {
			agg.positive++
		}
	}

	patterns := make([]Pattern, 0, len(aggs))
	for name, agg := range aggs {
		if agg.count < minEntries {
			continue
		}
		avg := float64(agg.sum) / float64(agg.count)
		patterns = append(patterns, Pattern{
			TagName:       name,
			Correlation:   round2(avg - overallAvg),
			PositiveCount: agg.positive,
			TotalCount:    agg.count,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		ai, aj := math.Abs(patterns[i].Correlation), math.Abs(patterns[j].Correlation)
		if ai != aj {
			return ai > aj
		}
		return patterns[i].TagName < patterns[j].TagName
	})
	return patterns
}

// GenerateInsights bundles trend, best weekday, streak and totals.
// Fewer than 7 entries yields ErrInsufficientData so callers can tell
// "no signal" from "not enough data".
func GenerateInsights(entries []model.MoodEntry, today time.Time) (Insights, error) {
	if len(entries) < minInsightEntries {
		return Insights{}, ErrInsufficientData
	}

	weekdays := ComputeWeekdayStats(entries)
	best := 0
	for i := 1; i < len(weekdays); i++ {
		if weekdays[i].Count == 0 {
			continue
		}
		if weekdays[best].Count == 0 || weekdays[i].Average > weekdays[best].Average {
			best = i
		}
	}

	return Insights{
		Trend:         ComputeTrend(entries),
		RecentAverage: round1(windowAverage(entries, 0, trendWindow)),
		BestWeekday:   weekdayFromIndex(best),
		TotalEntries:  len(entries),
		Streak:        ComputeStreak(entries, today),
	}, nil
}

// windowAverage averages entries[from:to), clamped to the slice.
func windowAverage(entries []model.MoodEntry, from, to int) float64 {
	if to > len(entries) {
		to = len(entries)
	}
	if from >= to {
		return 0
	}
	var sum int
	for _, e := range entries[from:to] {
		sum += e.MoodScore
	}
	return float64(sum) / float64(to-from)
}

func topTags(counts map[string]int, n int) []TagCount {
	all := make([]TagCount, 0, len(counts))
	for name, count := range counts {
		all = append(all, TagCount{Name: name, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Name < all[j].Name
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// weekdayIndex maps time.Weekday to Monday=0..Sunday=6.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func weekdayFromIndex(idx int) time.Weekday {
	return time.Weekday((idx + 1) % 7)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
