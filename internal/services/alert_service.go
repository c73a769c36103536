package services

import (
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AlertService шлёт операционные алерты в Telegram-чат дежурных.
// Nil-safe: без токена/чата все вызовы — no-op.
type AlertService struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewAlertService(botToken string, chatID int64) *AlertService {
	if botToken == "" || chatID == 0 {
		log.Printf("[alerts][tg] disabled (token or chat_id empty)")
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		log.Printf("[alerts][tg] init failed: %v", err)
		return nil
	}
	return &AlertService{bot: bot, chatID: chatID}
}

func (a *AlertService) NotifyLockout(email, phone, reason string, until time.Time) {
	if a == nil || a.bot == nil {
		return
	}
	text := fmt.Sprintf("⛔ Verification lockout\nemail: %s\nphone: %s\nreason: %s\nrestricted until: %s",
		email, phone, reason, until.Format(time.RFC3339))
	msg := tgbotapi.NewMessage(a.chatID, text)
	if _, err := a.bot.Send(msg); err != nil {
		log.Printf("[alerts][tg][err] send failed: %v", err)
	}
}
