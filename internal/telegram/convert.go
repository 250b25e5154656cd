// ABOUTME: Converts Telegram updates to engine inbound events and Instructions to Bot API requests
// ABOUTME: Pure mapping code with no network access so it can be tested directly

package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vistly/vistly-bot/internal/bot"
	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/render"
)

// FrontendName is the Inbound.Frontend value for Telegram events
const FrontendName = "telegram"

// toInbound converts an update into an engine event. Updates without a
// private or group chat sender are skipped.
func toInbound(u tgbotapi.Update, botUsername string) (bot.Inbound, bool) {
	var (
		from  *tgbotapi.User
		chat  *tgbotapi.Chat
		event flow.Event
	)
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.Message == nil || cq.Message.Chat == nil {
			return bot.Inbound{}, false
		}
		from, chat = cq.From, cq.Message.Chat
		event = flow.ButtonPress{Data: cq.Data}
	case u.Message != nil:
		from, chat = u.Message.From, u.Message.Chat
		event = flow.Text{Body: commandText(u.Message.Text, botUsername)}
	default:
		return bot.Inbound{}, false
	}
	if from == nil || chat == nil || from.IsBot {
		return bot.Inbound{}, false
	}

	return bot.Inbound{
		Frontend:       FrontendName,
		ConversationID: strconv.FormatInt(chat.ID, 10),
		EventID:        strconv.Itoa(u.UpdateID),
		ExternalUserID: strconv.FormatInt(from.ID, 10),
		Username:       from.UserName,
		Name:           strings.TrimSpace(from.FirstName + " " + from.LastName),
		LanguageCode:   from.LanguageCode,
		Event:          event,
	}, true
}

// commandText strips the "@bot" suffix group chats add to commands, so
// "/list@vistly_bot" reaches the machine as "/list".
func commandText(text, botUsername string) string {
	if !strings.HasPrefix(text, "/") {
		return text
	}
	cmd, rest, hasRest := strings.Cut(text, " ")
	name, mention, ok := strings.Cut(cmd, "@")
	if !ok || (botUsername != "" && !strings.EqualFold(mention, botUsername)) {
		return text
	}
	if hasRest {
		return name + " " + rest
	}
	return name
}

func inlineKeyboard(rows [][]render.Button) *tgbotapi.InlineKeyboardMarkup {
	var out [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, buttons)
	}
	if len(out) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &markup
}

func menuKeyboard(labels []string) tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, len(labels))
	for i, l := range labels {
		row[i] = tgbotapi.NewKeyboardButton(l)
	}
	kb := tgbotapi.NewReplyKeyboard(row)
	kb.ResizeKeyboard = true
	return kb
}

// replyMarkup picks the markup for a new message. Inline buttons win over
// the reply menu since a message carries only one of them.
func replyMarkup(in render.Instruction) any {
	if kb := inlineKeyboard(in.Buttons); kb != nil {
		return kb
	}
	if len(in.Menu) > 0 {
		return menuKeyboard(in.Menu)
	}
	return nil
}

func textMessage(chatID int64, in render.Instruction) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, in.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup := replyMarkup(in); markup != nil {
		msg.ReplyMarkup = markup
	}
	return msg
}

func photoMessage(chatID int64, in render.Instruction) tgbotapi.PhotoConfig {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(in.MediaURL))
	photo.Caption = in.Text
	photo.ParseMode = tgbotapi.ModeHTML
	if markup := replyMarkup(in); markup != nil {
		photo.ReplyMarkup = markup
	}
	return photo
}

func editText(chatID int64, messageID int, in render.Instruction) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, in.Text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = inlineKeyboard(in.Buttons)
	return edit
}

func callbackAnswer(queryID string, in render.Instruction) tgbotapi.CallbackConfig {
	if in.Alert && in.Notice != "" {
		return tgbotapi.NewCallbackWithAlert(queryID, in.Notice)
	}
	return tgbotapi.NewCallback(queryID, in.Notice)
}

// canEditInPlace reports whether a press on source can be answered by
// editing it: Telegram cannot turn a photo into text, and edits cannot
// install a reply keyboard.
func canEditInPlace(source *tgbotapi.Message, in render.Instruction) bool {
	return in.Kind == render.ShowTextWithButtons &&
		source != nil &&
		len(source.Photo) == 0 &&
		len(in.Menu) == 0
}
