package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/HmRandomGuy/T-V-B/domain"
	"github.com/HmRandomGuy/T-V-B/domain/repositories"
)

const (
	defaultPollTimeout        = 30 // seconds
	defaultLargeTextThreshold = 4000

	dashboardText = "⚙️ TTS Settings Dashboard\n\nChoose an option to modify, or send me text to generate audio."
	languageText  = "🗣️ Language Selection\n\nChoose the language for the TTS voice:"
	speedText     = "⏱️ Speed Selection\n\nChoose the pace of speech:"
)

// Config holds the Telegram transport configuration.
// Required fields:
// - BotToken: the bot token issued by BotFather
// Optional fields with defaults:
// - PollTimeout: long-poll window in seconds (default: 30)
// - LargeTextThreshold: document size above which a progress notice is sent (default: 4000)
// - APIEndpoint / FileEndpoint: endpoint overrides, mainly for tests
type Config struct {
	BotToken           string
	PollTimeout        int
	LargeTextThreshold int
	APIEndpoint        string
	FileEndpoint       string
}

// Gateway adapts the Telegram Bot API to the pipeline's MessageSource and
// Dispatcher capabilities. Commands and settings callbacks are user
// interface concerns and are answered inside Poll; only speakable text
// reaches the pipeline.
type Gateway struct {
	bot            *tgbotapi.BotAPI
	prefs          repositories.PreferenceStore
	pollTimeout    int
	largeThreshold int
	fileEndpoint   string
	client         *http.Client
	logger         *zap.Logger

	// offset is only touched from the single polling goroutine.
	offset int
}

var (
	_ repositories.MessageSource = (*Gateway)(nil)
	_ repositories.Dispatcher    = (*Gateway)(nil)
)

// NewGateway connects to the Bot API and verifies the token.
func NewGateway(config Config, prefs repositories.PreferenceStore, logger *zap.Logger) (*Gateway, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	apiEndpoint := config.APIEndpoint
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	fileEndpoint := config.FileEndpoint
	if fileEndpoint == "" {
		fileEndpoint = tgbotapi.FileEndpoint
	}
	pollTimeout := config.PollTimeout
	if pollTimeout == 0 {
		pollTimeout = defaultPollTimeout
	}
	largeThreshold := config.LargeTextThreshold
	if largeThreshold == 0 {
		largeThreshold = defaultLargeTextThreshold
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(config.BotToken, apiEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bot API: %w", err)
	}

	logger.Info("connected to Telegram", zap.String("username", bot.Self.UserName))

	return &Gateway{
		bot:            bot,
		prefs:          prefs,
		pollTimeout:    pollTimeout,
		largeThreshold: largeThreshold,
		fileEndpoint:   fileEndpoint,
		client:         &http.Client{Timeout: 30 * time.Second},
		logger:         logger,
	}, nil
}

// Poll runs one long-poll cycle and returns the speakable requests it
// produced. Malformed or unsupported updates are dropped with a logged
// warning; a transport error is returned to the supervisor.
func (g *Gateway) Poll(ctx context.Context) ([]domain.InboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := tgbotapi.NewUpdate(g.offset)
	u.Timeout = g.pollTimeout

	updates, err := g.bot.GetUpdates(u)
	if err != nil {
		return nil, fmt.Errorf("getUpdates failed: %w", err)
	}

	var requests []domain.InboundMessage
	for _, update := range updates {
		if update.UpdateID >= g.offset {
			g.offset = update.UpdateID + 1
		}
		if msg, ok := g.translate(ctx, update); ok {
			requests = append(requests, msg)
		}
	}
	return requests, nil
}

// translate turns one update into at most one pipeline request, answering
// UI traffic (commands, callbacks) in place.
func (g *Gateway) translate(ctx context.Context, update tgbotapi.Update) (domain.InboundMessage, bool) {
	switch {
	case update.CallbackQuery != nil:
		g.handleCallback(update.CallbackQuery)
		return domain.InboundMessage{}, false

	case update.Message == nil:
		g.logger.Warn("dropping update without message", zap.Int("update_id", update.UpdateID))
		return domain.InboundMessage{}, false

	case update.Message.IsCommand():
		g.handleCommand(update.Message)
		return domain.InboundMessage{}, false

	case update.Message.Document != nil:
		return g.handleDocument(ctx, update.Message)

	case update.Message.Text != "":
		return domain.InboundMessage{
			ChatID:     update.Message.Chat.ID,
			MessageID:  update.Message.MessageID,
			Text:       update.Message.Text,
			ReceivedAt: update.Message.Time(),
		}, true

	default:
		g.logger.Warn("dropping unsupported message",
			zap.Int64("chat_id", update.Message.Chat.ID))
		g.reply(update.Message.Chat.ID, "❌ I can only process plain text messages or .txt files.")
		return domain.InboundMessage{}, false
	}
}

// handleDocument downloads a plain-text attachment and turns it into a
// document-sourced request.
func (g *Gateway) handleDocument(ctx context.Context, msg *tgbotapi.Message) (domain.InboundMessage, bool) {
	doc := msg.Document
	if doc.MimeType != "text/plain" {
		g.reply(msg.Chat.ID, "❌ Please send a plain .txt file.")
		return domain.InboundMessage{}, false
	}

	file, err := g.bot.GetFile(tgbotapi.FileConfig{FileID: doc.FileID})
	if err != nil {
		g.logger.Warn("failed to resolve document", zap.Error(err))
		g.reply(msg.Chat.ID, "❌ An unexpected error occurred while processing the file.")
		return domain.InboundMessage{}, false
	}

	data, err := g.download(ctx, fmt.Sprintf(g.fileEndpoint, g.bot.Token, file.FilePath))
	if err != nil {
		g.logger.Warn("failed to download document", zap.Error(err))
		g.reply(msg.Chat.ID, "❌ An unexpected error occurred while processing the file.")
		return domain.InboundMessage{}, false
	}

	if !utf8.Valid(data) {
		g.reply(msg.Chat.ID, "❌ Could not read the file. Please ensure it's a UTF-8 encoded text file.")
		return domain.InboundMessage{}, false
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		g.reply(msg.Chat.ID, "The text file is empty.")
		return domain.InboundMessage{}, false
	}

	if n := len([]rune(text)); n > g.largeThreshold {
		g.reply(msg.Chat.ID, fmt.Sprintf("📄 Large file detected (%d characters). Processing in chunks...", n))
	}

	return domain.InboundMessage{
		ChatID:       msg.Chat.ID,
		MessageID:    msg.MessageID,
		Text:         text,
		ReceivedAt:   msg.Time(),
		FromDocument: true,
	}, true
}

func (g *Gateway) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (g *Gateway) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		prefs := g.prefs.Get(msg.Chat.ID)
		text := fmt.Sprintf(
			"👋 Welcome to the Multi-Language TTS Bot!\n\n"+
				"I can convert any text you send me into a voice note.\n\n"+
				"📝 <b>How to use me:</b>\n"+
				"1. <b>Send a text message</b>.\n"+
				"2. <b>Upload a <code>.txt</code> file</b> (even large ones are okay!).\n\n"+
				"⚙️ <b>Configuration:</b>\n"+
				"Use the <code>/settings</code> command to adjust the language and speech pace.\n\n"+
				"🗣️ <b>Current Default Settings:</b> %s at %s.",
			prefs.Language().Label, prefs.Speed().Label)

		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		reply.ParseMode = tgbotapi.ModeHTML
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⚙️ Open Settings Dashboard", "open:dashboard"),
			),
		)
		g.send(reply)

	case "settings":
		reply := tgbotapi.NewMessage(msg.Chat.ID, dashboardText)
		reply.ReplyMarkup = g.dashboardMarkup(msg.Chat.ID)
		g.send(reply)

	default:
		g.reply(msg.Chat.ID, "❌ Unknown command. Try /help.")
	}
}

// handleCallback drives the settings dashboard state machine. Callback
// data has the shape action:target[:key].
func (g *Gateway) handleCallback(query *tgbotapi.CallbackQuery) {
	if _, err := g.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		g.logger.Warn("failed to answer callback", zap.Error(err))
	}
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	parts := strings.SplitN(query.Data, ":", 3)
	if len(parts) < 2 {
		g.logger.Warn("dropping malformed callback", zap.String("data", query.Data))
		return
	}

	switch parts[0] {
	case "open":
		switch parts[1] {
		case "lang":
			g.edit(chatID, messageID, languageText, g.languageMarkup(chatID))
		case "speed":
			g.edit(chatID, messageID, speedText, g.speedMarkup(chatID))
		case "dashboard":
			g.edit(chatID, messageID, dashboardText, g.dashboardMarkup(chatID))
		}

	case "set":
		if len(parts) != 3 {
			return
		}
		var err error
		switch parts[1] {
		case "lang":
			err = g.prefs.SetLanguage(chatID, parts[2])
		case "speed":
			err = g.prefs.SetSpeed(chatID, parts[2])
		}
		if err != nil {
			g.logger.Warn("rejecting settings update", zap.String("data", query.Data), zap.Error(err))
			return
		}
		g.edit(chatID, messageID, dashboardText, g.dashboardMarkup(chatID))

	case "close":
		if _, err := g.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID,
			"Settings closed. I'm ready for your text! ✍️")); err != nil {
			g.logger.Warn("failed to edit message", zap.Error(err))
		}
	}
}

func (g *Gateway) dashboardMarkup(chatID int64) tgbotapi.InlineKeyboardMarkup {
	prefs := g.prefs.Get(chatID)
	lang := prefs.Language()
	speed := prefs.Speed()

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗣️ Language: %s %s", lang.Flag, lang.Label), "open:lang"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("⏱️ Speed: %s", speed.Label), "open:speed"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↩️ Back to Chat", "close:settings"),
		),
	)
}

func (g *Gateway) languageMarkup(chatID int64) tgbotapi.InlineKeyboardMarkup {
	current := g.prefs.Get(chatID).LanguageKey

	var buttons []tgbotapi.InlineKeyboardButton
	for _, key := range sortedKeys(domain.Languages) {
		info := domain.Languages[key]
		label := fmt.Sprintf("%s %s", info.Flag, info.Label)
		if key == current {
			label = "✅ " + label
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, "set:lang:"+key))
	}

	rows := pairRows(buttons, 2)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to Dashboard", "open:dashboard")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (g *Gateway) speedMarkup(chatID int64) tgbotapi.InlineKeyboardMarkup {
	current := g.prefs.Get(chatID).SpeedKey

	var buttons []tgbotapi.InlineKeyboardButton
	for _, key := range sortedKeys(domain.Speeds) {
		label := domain.Speeds[key].Label
		if key == current {
			label = "✅ " + label
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, "set:speed:"+key))
	}

	rows := pairRows(buttons, 3)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to Dashboard", "open:dashboard")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// SendVoice implements repositories.Dispatcher.
func (g *Gateway) SendVoice(ctx context.Context, chatID int64, note *domain.VoiceNote) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("voice_note_%d.ogg", chatID),
		Bytes: note.Data,
	})
	voice.Caption = note.Caption
	if note.Duration > 0 {
		voice.Duration = int(note.Duration.Seconds())
	}

	if _, err := g.bot.Send(voice); err != nil {
		return fmt.Errorf("sendVoice failed: %w", err)
	}
	return nil
}

// SendText implements repositories.Dispatcher.
func (g *Gateway) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := g.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("sendMessage failed: %w", err)
	}
	return nil
}

// NotifyRecording implements repositories.Dispatcher. Best effort.
func (g *Gateway) NotifyRecording(chatID int64) {
	if _, err := g.bot.Request(tgbotapi.NewChatAction(chatID, "record_voice")); err != nil {
		g.logger.Debug("failed to send chat action", zap.Error(err))
	}
}

func (g *Gateway) reply(chatID int64, text string) {
	g.send(tgbotapi.NewMessage(chatID, text))
}

func (g *Gateway) send(c tgbotapi.Chattable) {
	if _, err := g.bot.Send(c); err != nil {
		g.logger.Warn("failed to send message", zap.Error(err))
	}
}

func (g *Gateway) edit(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	if _, err := g.bot.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)); err != nil {
		g.logger.Warn("failed to edit message", zap.Error(err))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pairRows(buttons []tgbotapi.InlineKeyboardButton, perRow int) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	for len(buttons) > perRow {
		rows = append(rows, buttons[:perRow])
		buttons = buttons[perRow:]
	}
	if len(buttons) > 0 {
		rows = append(rows, buttons)
	}
	return rows
}
