package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"github.com/miro2468/MoodTracker-Bot/internal/analytics"
	"github.com/miro2468/MoodTracker-Bot/internal/config"
	"github.com/miro2468/MoodTracker-Bot/internal/model"
	"github.com/miro2468/MoodTracker-Bot/internal/repository"
	"github.com/miro2468/MoodTracker-Bot/internal/scheduler"
	"github.com/miro2468/MoodTracker-Bot/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageScore
	stageTags
	stageNote
)

const (
	btnSkip         = "⏭️ Пропустить"
	btnDone         = "✅ Готово"
	btnCancelDialog = "⏪ Отменить ввод"
)

const patternMinEntries = 5

const diaryPageSize = 10

type conversationState struct {
	stage  conversationStage
	input  service.MoodInput
	byName map[string]uint // tag name -> id, for keyboard replies
	chosen map[uint]bool
}

// Bot aggregates the Telegram API with the mood services and the
// reminder scheduler. It also implements scheduler.Notifier.
type Bot struct {
	api          *tgbotapi.BotAPI
	userRepo     *repository.UserRepository
	settingsRepo *repository.SettingsRepository
	moodSvc      *service.MoodService
	analyticsSvc *service.AnalyticsService
	exportSvc    *service.ExportService
	scheduler    *scheduler.Scheduler

	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, settingsRepo *repository.SettingsRepository,
	moodSvc *service.MoodService, analyticsSvc *service.AnalyticsService, exportSvc *service.ExportService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		settingsRepo:  settingsRepo,
		moodSvc:       moodSvc,
		analyticsSvc:  analyticsSvc,
		exportSvc:     exportSvc,
		conversations: make(map[int64]*conversationState),
	}, nil
}

// AttachScheduler wires the reminder scheduler; the bot and scheduler
// reference each other, so this runs after both are constructed.
func (b *Bot) AttachScheduler(s *scheduler.Scheduler) {
	b.scheduler = s
}

// Notify implements scheduler.Notifier by resolving the internal user
// to their Telegram chat.
func (b *Bot) Notify(ctx context.Context, userID uint, text string) error {
	user, err := b.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve user %d: %w", userID, err)
	}
	return b.sendText(user.TelegramID, text)
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			continue
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && strings.TrimSpace(msg.Text) == btnCancelDialog {
		b.clearConversation(msg.From.ID)
		return b.sendTextWithRemove(msg.Chat.ID, "⏪ Ввод отменён.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /mood, чтобы записать настроение, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "mood":
		return b.startMoodConversation(ctx, msg)
	case "diary":
		return b.handleDiary(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "insights":
		return b.handleInsights(ctx, msg)
	case "patterns":
		return b.handlePatterns(ctx, msg)
	case "weekdays":
		return b.handleWeekdays(ctx, msg)
	case "streak":
		return b.handleStreak(ctx, msg)
	case "tags":
		return b.handleTags(ctx, msg)
	case "newtag":
		return b.handleNewTag(ctx, msg)
	case "deltag":
		return b.handleDelTag(ctx, msg)
	case "settings":
		return b.handleSettings(ctx, msg)
	case "remind":
		return b.handleRemind(ctx, msg)
	case "remind_off":
		return b.handleRemindOff(ctx, msg)
	case "timezone":
		return b.handleTimezone(ctx, msg)
	case "export":
		return b.handleExport(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendTextWithRemove(msg.Chat.ID, "⏪ Диалог отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"🌟 Привет, %s!\n<b>Я помогу отслеживать твоё эмоциональное состояние.</b>\n\nКоманды:\n"+
			"• /mood — записать настроение\n"+
			"• /diary — последние записи дневника\n"+
			"• /stats — статистика за неделю (или /stats month, quarter, year)\n"+
			"• /insights — тренд, лучший день недели, серия\n"+
			"• /patterns — как теги связаны с настроением\n"+
			"• /weekdays — настроение по дням недели\n"+
			"• /streak — текущая серия дней\n"+
			"• /tags — список тегов\n"+
			"• /settings — напоминания и часовой пояс\n"+
			"• /export — выгрузка всех записей в CSV\n"+
			"• /help — подсказки",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /mood — записать настроение пошагово: оценка, теги, заметка\n" +
		"• /diary [week|month|слово] — последние записи, за период или поиск по заметкам\n" +
		"• /stats [week|month|quarter|year] — статистика за период\n" +
		"• /insights — тренд и инсайты (нужно минимум 7 записей)\n" +
		"• /patterns — корреляция тегов с настроением (минимум 5 записей на тег)\n" +
		"• /weekdays — средняя оценка по дням недели\n" +
		"• /streak — сколько дней подряд ведёшь дневник\n" +
		"• /newtag &lt;название&gt; — создать свой тег\n" +
		"• /deltag &lt;название&gt; — удалить свой тег\n" +
		"• /remind ЧЧ:ММ — ежедневное напоминание\n" +
		"• /remind_off — отключить напоминание\n" +
		"• /timezone UTC+3 — часовой пояс\n" +
		"• /cancel — отменить текущий ввод"
	return b.sendText(msg.Chat.ID, text)
}

// ----- mood conversation -----

func (b *Bot) startMoodConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageScore})
	return b.sendWithReplyMarkup(msg.Chat.ID, "😊 Как твоё настроение сегодня?", scoreKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageScore:
		score, ok := parseScoreInput(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери оценку от 1 до 5 на клавиатуре.", scoreKeyboard())
		}
		state.input.Score = score
		state.stage = stageTags
		state.chosen = make(map[uint]bool)

		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		tags, err := b.moodSvc.ListTags(ctx, user)
		if err != nil {
			log.Printf("list tags for user %d: %v", user.ID, err)
			tags = nil
		}
		state.byName = make(map[string]uint, len(tags))
		for _, tag := range tags {
			state.byName[tag.Name] = tag.ID
		}
		return b.sendWithReplyMarkup(msg.Chat.ID,
			"🏷 Отметь, что повлияло на настроение (можно несколько), затем нажми «Готово».",
			tagsKeyboard(tags))
	case stageTags:
		if text == btnDone || text == btnSkip {
			state.stage = stageNote
			return b.sendWithReplyMarkup(msg.Chat.ID,
				fmt.Sprintf("📝 Добавь заметку о дне (до %d символов) или нажми «Пропустить».", config.DiaryTextLimit),
				skipKeyboard())
		}
		tagID, ok := state.byName[text]
		if !ok {
			return b.sendText(msg.Chat.ID, "Такого тега нет. Выбери тег на клавиатуре или нажми «Готово».")
		}
		if state.chosen[tagID] {
			return b.sendText(msg.Chat.ID, "Этот тег уже добавлен. Выбери ещё или нажми «Готово».")
		}
		state.chosen[tagID] = true
		state.input.TagIDs = append(state.input.TagIDs, tagID)
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Добавил: %s. Ещё теги или «Готово».", escape(text)))
	case stageNote:
		if text != btnSkip {
			state.input.DiaryText = text
		}
		err := b.finishMoodEntry(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendTextWithRemove(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /mood.")
	}
}

func (b *Bot) finishMoodEntry(ctx context.Context, from *tgbotapi.User, input service.MoodInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	entry, err := b.moodSvc.LogMood(ctx, user, input)
	if err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Не удалось сохранить запись: %s", escape(err.Error())))
	}

	log.Printf("[info] mood entry saved id=%d user=%d score=%d tags=%d", entry.ID, user.ID, entry.MoodScore, len(input.TagIDs))

	entries, err := b.moodSvc.RecentEntries(ctx, user, 1)
	var tags []model.Tag
	if err == nil && len(entries) > 0 {
		tags = entries[0].Tags
	}

	streakNote := ""
	if streak, err := b.analyticsSvc.Streak(ctx, user); err == nil && streak > 1 {
		streakNote = fmt.Sprintf("\n\n🔥 Серия: %d дн. подряд!", streak)
	}

	return b.sendTextWithRemove(chatID, formatEntry(entry, tags)+streakNote)
}

// handleDiary shows recent history: no argument lists the latest
// entries, a period keyword narrows to that range, anything else is a
// text search over the notes.
func (b *Bot) handleDiary(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	arg := strings.TrimSpace(msg.CommandArguments())
	var (
		entries []model.MoodEntry
		title   string
	)
	switch arg {
	case "":
		title = "📖 <b>Последние записи</b>"
		entries, err = b.moodSvc.RecentEntries(ctx, user, diaryPageSize)
	case "week", "month", "quarter", "year":
		title = "📖 <b>Записи за период</b>"
		start, end := b.analyticsSvc.PeriodRange(ctx, user, arg)
		entries, err = b.moodSvc.EntriesBetween(ctx, user, start, end, diaryPageSize)
	default:
		title = fmt.Sprintf("🔎 <b>Записи по запросу «%s»</b>", escape(arg))
		entries, err = b.moodSvc.SearchEntries(ctx, user, arg, diaryPageSize)
	}
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить записи: %s", escape(err.Error())))
	}
	if len(entries) == 0 {
		return b.sendText(msg.Chat.ID, "📖 Записей не найдено. Начни с /mood!")
	}
	return b.sendText(msg.Chat.ID, formatDiary(title, entries))
}

// ----- analytics commands -----

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	period := strings.TrimSpace(msg.CommandArguments())
	if period == "" {
		period = "week"
	}
	start, end := b.analyticsSvc.PeriodRange(ctx, user, period)

	stats, err := b.analyticsSvc.Stats(ctx, user, start, end)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить статистику: %s", escape(err.Error())))
	}
	if stats.TotalEntries == 0 {
		return b.sendText(msg.Chat.ID, "📊 За этот период записей нет. Начни с /mood!")
	}
	return b.sendText(msg.Chat.ID, formatStats(stats))
}

func (b *Bot) handleInsights(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	insights, err := b.analyticsSvc.Insights(ctx, user)
	if errors.Is(err, analytics.ErrInsufficientData) {
		return b.sendText(msg.Chat.ID, "💡 Нужно минимум 7 записей для инсайтов. Продолжай вести дневник!")
	}
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить инсайты: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, formatInsights(insights))
}

func (b *Bot) handlePatterns(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	patterns, err := b.analyticsSvc.Patterns(ctx, user, patternMinEntries)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить паттерны: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, formatPatterns(patterns))
}

func (b *Bot) handleWeekdays(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	stats, err := b.analyticsSvc.WeekdayStats(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить статистику: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, formatWeekdays(stats))
}

func (b *Bot) handleStreak(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	streak, err := b.analyticsSvc.Streak(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось посчитать серию: %s", escape(err.Error())))
	}
	if streak == 0 {
		return b.sendText(msg.Chat.ID, "🔥 Серия пока не начата — запиши настроение сегодня: /mood")
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔥 Серия: %d дн. подряд! Так держать!", streak))
}

// ----- tags -----

func (b *Bot) handleTags(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	tags, err := b.moodSvc.ListTags(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить теги: %s", escape(err.Error())))
	}

	var sb strings.Builder
	sb.WriteString("🏷 <b>Теги</b>\n")
	category := ""
	for _, tag := range tags {
		if tag.Category != category {
			category = tag.Category
			sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", escape(category)))
		}
		marker := "•"
		if !tag.IsPredefined {
			marker = "◦"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", marker, escape(tag.Name)))
	}
	sb.WriteString("\nСвой тег: /newtag название")
	return b.sendText(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleNewTag(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Укажи название: /newtag прогулка")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	tag, err := b.moodSvc.CreateTag(ctx, user, name, "")
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось создать тег: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Тег «%s» создан.", escape(tag.Name)))
}

func (b *Bot) handleDelTag(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Укажи название: /deltag прогулка")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	err = b.moodSvc.DeleteTag(ctx, user, name)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return b.sendText(msg.Chat.ID, "Тег не найден.")
	case errors.Is(err, repository.ErrTagNotOwned):
		return b.sendText(msg.Chat.ID, "Можно удалять только свои теги.")
	case err != nil:
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось удалить тег: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Тег «%s» удалён.", escape(name)))
}

// ----- settings & reminders -----

func (b *Bot) handleSettings(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	settings, err := b.settingsRepo.Get(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить настройки: %s", escape(err.Error())))
	}

	info := b.scheduler.Info(user.ID)
	return b.sendText(msg.Chat.ID, formatSettings(settings, info.Active, info.NextFire))
}

func (b *Bot) handleRemind(ctx context.Context, msg *tgbotapi.Message) error {
	raw := strings.TrimSpace(msg.CommandArguments())
	if raw == "" {
		return b.sendText(msg.Chat.ID, "Укажи время: /remind 21:00")
	}
	if _, _, err := scheduler.ParseFireTime(raw); err != nil {
		return b.sendText(msg.Chat.ID, "Время должно быть в формате ЧЧ:ММ, например 21:00.")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	settings, err := b.settingsRepo.Get(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить настройки: %s", escape(err.Error())))
	}
	settings.DailyReminder = true
	settings.ReminderTime = raw
	if err := b.settingsRepo.Save(ctx, settings); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить настройки: %s", escape(err.Error())))
	}

	if _, err := b.scheduler.Upsert(user.ID, raw, settings.TZOffsetMin, settings.AdaptiveReminder); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось установить напоминание: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔔 Напоминание установлено на %s (%s).", raw, formatOffset(settings.TZOffsetMin)))
}

func (b *Bot) handleRemindOff(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	settings, err := b.settingsRepo.Get(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить настройки: %s", escape(err.Error())))
	}
	settings.DailyReminder = false
	if err := b.settingsRepo.Save(ctx, settings); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить настройки: %s", escape(err.Error())))
	}

	b.scheduler.Cancel(user.ID)
	return b.sendText(msg.Chat.ID, "🔕 Напоминание отключено.")
}

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message) error {
	raw := strings.TrimSpace(msg.CommandArguments())
	if raw == "" {
		return b.sendText(msg.Chat.ID, "Укажи пояс: /timezone UTC+3")
	}

	offset, err := scheduler.ParseUTCOffset(raw)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не понял пояс. Пример: /timezone UTC+3 или /timezone UTC-05:30")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	settings, err := b.settingsRepo.Get(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить настройки: %s", escape(err.Error())))
	}
	settings.TZOffsetMin = offset
	if err := b.settingsRepo.Save(ctx, settings); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить настройки: %s", escape(err.Error())))
	}

	// Reschedule at the new offset if the reminder is on.
	if settings.DailyReminder {
		if _, err := b.scheduler.Upsert(user.ID, settings.ReminderTime, offset, settings.AdaptiveReminder); err != nil {
			log.Printf("reschedule after timezone change user=%d: %v", user.ID, err)
		}
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🌍 Часовой пояс обновлён: %s.", formatOffset(offset)))
}

// ----- export -----

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	data, err := b.exportSvc.CSV(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось выгрузить данные: %s", escape(err.Error())))
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("mood_export_%s.csv", time.Now().Format("20060102")),
		Bytes: data,
	})
	doc.Caption = "📤 Все твои записи настроения"
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send export: %w", err)
	}
	return nil
}

// ----- plumbing -----

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

// parseScoreInput accepts "4" or keyboard labels like "🙂 4".
func parseScoreInput(text string) (int, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false
	}
	score, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || score < 1 || score > 5 {
		return 0, false
	}
	return score, true
}

func scoreKeyboard() tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, 5)
	for score := 1; score <= 5; score++ {
		row = append(row, tgbotapi.NewKeyboardButton(fmt.Sprintf("%s %d", config.MoodEmojis[score], score)))
	}
	kb := tgbotapi.NewReplyKeyboard(row, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb.OneTimeKeyboard = false
	kb.ResizeKeyboard = true
	return kb
}

func tagsKeyboard(tags []model.Tag) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	row := make([]tgbotapi.KeyboardButton, 0, 2)
	for _, tag := range tags {
		row = append(row, tgbotapi.NewKeyboardButton(tag.Name))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnDone),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}
