package notificator

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/pkg/logger"
)

// Notificator tells the operator when a challenge invoice settles. All
// channels are optional; a Notificator with none configured is a no-op.
type Notificator struct {
	logger *logger.Logger

	TelegramNotificator *TelegramNotificator
	TelegramChatID      string
	EmailNotificator    *EmailNotificator
	NotifyEmail         string
}

func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, telegramChatID string, emailNotif *EmailNotificator, notifyEmail string) *Notificator {
	return &Notificator{
		logger:              logger,
		TelegramNotificator: telNotif,
		TelegramChatID:      telegramChatID,
		EmailNotificator:    emailNotif,
		NotifyEmail:         notifyEmail,
	}
}

// safeCall runs a function with panic recovery so a broken notification
// channel cannot take down request handling.
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Errorw("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// NotifySettled sends the settlement message on every configured channel.
func (n *Notificator) NotifySettled(challenge *models.Challenge) {
	message := fmt.Sprintf(
		"Payment received: %d sats for %s\nPayment hash: %s\nSettled at: %s",
		challenge.PriceSats,
		challenge.Location,
		challenge.PaymentHash,
		time.Unix(challenge.SettledAt, 0).UTC().Format(time.RFC3339),
	)

	if n.TelegramNotificator != nil && n.TelegramChatID != "" {
		n.safeCall(func() {
			n.TelegramNotificator.SendNotification(n.TelegramChatID, message)
		}, "telegram notification")
	}

	if n.EmailNotificator != nil && n.NotifyEmail != "" {
		n.safeCall(func() {
			n.EmailNotificator.SendNotification(n.NotifyEmail, "Payment received", message)
		}, "email notification")
	}
}
