package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/miro2468/MoodTracker-Bot/internal/analytics"
	"github.com/miro2468/MoodTracker-Bot/internal/config"
	"github.com/miro2468/MoodTracker-Bot/internal/model"
)

// weekdayNames is indexed Monday=0, matching the analytics engine.
var weekdayNames = [7]string{
	"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье",
}

var trendNames = map[analytics.Trend]string{
	analytics.TrendImproving: "улучшается 📈",
	analytics.TrendWorsening: "ухудшается 📉",
	analytics.TrendStable:    "стабильное ➖",
}

func escape(s string) string {
	return html.EscapeString(s)
}

func moodLabel(score int) string {
	return fmt.Sprintf("%s %d/5 (%s)", config.MoodEmojis[score], score, config.MoodNames[score])
}

func formatEntry(entry *model.MoodEntry, tags []model.Tag) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🌟 <b>Запись за %s</b>\n", entry.Day().Format("02.01.2006")))
	sb.WriteString(fmt.Sprintf("😊 Настроение: %s\n", moodLabel(entry.MoodScore)))

	if len(tags) > 0 {
		names := make([]string, 0, len(tags))
		for _, tag := range tags {
			names = append(names, escape(tag.Name))
		}
		sb.WriteString(fmt.Sprintf("🏷 Теги: %s\n", strings.Join(names, ", ")))
	}

	if entry.DiaryText != "" {
		sb.WriteString(fmt.Sprintf("\n📝 %s\n", escape(entry.DiaryText)))
	}

	sb.WriteString(fmt.Sprintf("\n✅ Сохранено в %s", entry.CreatedAt.Format("15:04")))
	return sb.String()
}

func formatDiary(title string, entries []model.MoodEntry) string {
	var sb strings.Builder
	sb.WriteString(title + "\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("\n%s %s %d/5", e.Day().Format("02.01.2006"), config.MoodEmojis[e.MoodScore], e.MoodScore))
		if len(e.Tags) > 0 {
			names := make([]string, 0, len(e.Tags))
			for _, tag := range e.Tags {
				names = append(names, escape(tag.Name))
			}
			sb.WriteString(fmt.Sprintf("\n🏷 %s", strings.Join(names, ", ")))
		}
		if e.DiaryText != "" {
			sb.WriteString(fmt.Sprintf("\n📝 %s", escape(snippet(e.DiaryText, 100))))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// snippet trims long notes for the list view.
func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}

func formatStats(stats analytics.Stats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 <b>Статистика за %s</b>\n\n", stats.Period))
	sb.WriteString(fmt.Sprintf("📈 Среднее настроение: %.1f/5\n", stats.AverageMood))
	sb.WriteString(fmt.Sprintf("🎯 Записей: %d\n", stats.TotalEntries))

	if stats.BestDay != nil {
		sb.WriteString(fmt.Sprintf("📅 Лучший день: %s\n", stats.BestDay.Format("02.01.2006")))
	}
	if stats.WorstDay != nil {
		sb.WriteString(fmt.Sprintf("📉 Худший день: %s\n", stats.WorstDay.Format("02.01.2006")))
	}

	if len(stats.TopTags) > 0 {
		sb.WriteString("\n🏆 <b>Самые частые теги</b>\n")
		for i, tc := range stats.TopTags {
			sb.WriteString(fmt.Sprintf("%d. %s (%d)\n", i+1, escape(tc.Name), tc.Count))
		}
	}

	return strings.TrimSpace(sb.String())
}

func formatPatterns(patterns []analytics.Pattern) string {
	if len(patterns) == 0 {
		return "🔍 Паттерны не найдены. Нужно больше записей с тегами (минимум 5 записей на тег)."
	}

	var sb strings.Builder
	sb.WriteString("🔍 <b>Паттерны настроения</b>\n\n")
	for i, p := range patterns {
		if i >= 10 {
			break
		}
		arrow := "📈"
		if p.Correlation < 0 {
			arrow = "📉"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", arrow, escape(p.TagName)))
		sb.WriteString(fmt.Sprintf("   Корреляция: %+.2f\n", p.Correlation))
		sb.WriteString(fmt.Sprintf("   Положительных записей: %d/%d\n\n", p.PositiveCount, p.TotalCount))
	}
	return strings.TrimSpace(sb.String())
}

func formatWeekdays(stats [7]analytics.WeekdayStat) string {
	var sb strings.Builder
	sb.WriteString("📅 <b>Настроение по дням недели</b>\n\n")
	for i, st := range stats {
		if st.Count == 0 {
			sb.WriteString(fmt.Sprintf("%s: нет данных\n", weekdayNames[i]))
			continue
		}
		emoji := "😢"
		switch {
		case st.Average >= 4:
			emoji = "😊"
		case st.Average >= 3:
			emoji = "😐"
		}
		sb.WriteString(fmt.Sprintf("%s: %s %.1f/5 (%d зап.)\n", weekdayNames[i], emoji, st.Average, st.Count))
	}
	return strings.TrimSpace(sb.String())
}

func formatInsights(in analytics.Insights) string {
	var sb strings.Builder
	sb.WriteString("💡 <b>Инсайты</b>\n\n")
	sb.WriteString(fmt.Sprintf("📈 Тренд: %s\n", trendNames[in.Trend]))
	sb.WriteString(fmt.Sprintf("🎯 Среднее за последние записи: %.1f/5\n", in.RecentAverage))
	sb.WriteString(fmt.Sprintf("🗓 Лучший день недели: %s\n", weekdayNames[(int(in.BestWeekday)+6)%7]))
	sb.WriteString(fmt.Sprintf("🔥 Серия: %d дн.\n", in.Streak))
	sb.WriteString(fmt.Sprintf("📚 Всего записей: %d", in.TotalEntries))
	return sb.String()
}

func formatSettings(settings *model.UserSettings, active bool, nextFire time.Time) string {
	var sb strings.Builder
	sb.WriteString("⚙️ <b>Настройки</b>\n\n")
	if settings.DailyReminder {
		sb.WriteString(fmt.Sprintf("🔔 Напоминание: включено, %s\n", settings.ReminderTime))
	} else {
		sb.WriteString("🔕 Напоминание: выключено\n")
	}
	if settings.AdaptiveReminder {
		sb.WriteString("🧠 Режим: адаптивный (только после перерыва)\n")
	}
	sb.WriteString(fmt.Sprintf("🌍 Часовой пояс: %s\n", formatOffset(settings.TZOffsetMin)))
	if active && !nextFire.IsZero() {
		local := nextFire.UTC().Add(time.Duration(settings.TZOffsetMin) * time.Minute)
		sb.WriteString(fmt.Sprintf("⏰ Следующее напоминание: %s\n", local.Format("02.01.2006 15:04")))
	}
	sb.WriteString("\nКоманды: /remind ЧЧ:ММ, /remind_off, /timezone UTC+3")
	return sb.String()
}

func formatOffset(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("UTC%s%d", sign, minutes/60)
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, minutes/60, minutes%60)
}
