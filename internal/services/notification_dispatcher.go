package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"khayalcare/internal/models"
)

const (
	defaultDispatchTimeout = 3 * time.Second
	// запас на обвязку поверх таймаута канала
	dispatchGrace = 200 * time.Millisecond
)

// EmailChannel — внешний email-транспорт; обязан уважать ctx.
type EmailChannel interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MessageChannel — внешний мессенджер-транспорт (WhatsApp); обязан уважать ctx.
type MessageChannel interface {
	Send(ctx context.Context, phone, text string) error
}

// NotificationDispatcher рассылает код по каналам записи: каждый канал — своя
// горутина с жёстким таймаутом, ошибки глотаются и логируются. Вызывающий
// никогда не ждёт доставки.
type NotificationDispatcher struct {
	email    EmailChannel
	whatsapp MessageChannel
	timeout  time.Duration
	codeTTL  time.Duration
}

func NewNotificationDispatcher(email EmailChannel, whatsapp MessageChannel, timeout, codeTTL time.Duration) *NotificationDispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	if codeTTL <= 0 {
		codeTTL = defaultCodeTTL
	}
	return &NotificationDispatcher{
		email:    email,
		whatsapp: whatsapp,
		timeout:  timeout,
		codeTTL:  codeTTL,
	}
}

// Dispatch запускает отправку и сразу возвращает список запланированных каналов.
func (d *NotificationDispatcher) Dispatch(v *models.VerificationCode) []string {
	subject, emailBody, whatsappText := d.buildMessages(v)

	var scheduled []string
	if (v.Method == models.MethodEmail || v.Method == models.MethodBoth) && d.email != nil {
		to := v.Email
		go d.send("email", to, func(ctx context.Context) error {
			return d.email.Send(ctx, to, subject, emailBody)
		})
		scheduled = append(scheduled, "email")
	}
	if (v.Method == models.MethodWhatsApp || v.Method == models.MethodBoth) && d.whatsapp != nil {
		to := v.Phone
		go d.send("whatsapp", to, func(ctx context.Context) error {
			return d.whatsapp.Send(ctx, to, whatsappText)
		})
		scheduled = append(scheduled, "WhatsApp")
	}

	if len(scheduled) > 0 {
		log.Printf("[notify][queued] via=%s email=%s phone=%s", strings.Join(scheduled, ","), v.Email, v.Phone)
	} else {
		log.Printf("[notify][queued] no channels selected: email=%s phone=%s", v.Email, v.Phone)
	}
	return scheduled
}

func (d *NotificationDispatcher) send(channel, recipient string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout+dispatchGrace)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("[notify][%s][err] to=%s err=%v", channel, recipient, err)
		return
	}
	log.Printf("[notify][%s] sent to=%s", channel, recipient)
}

func (d *NotificationDispatcher) buildMessages(v *models.VerificationCode) (subject, emailBody, whatsappText string) {
	ttlMinutes := int(d.codeTTL.Minutes())

	if v.Purpose == models.PurposeRegistration {
		subject = "Verify Your Khayal Healthcare Account"
		emailBody = fmt.Sprintf(`Dear User,

Welcome to Khayal Healthcare! To complete your registration, please use the following verification code:

Verification Code: %s

This code will expire in %d minutes.

If you didn't request this code, please ignore this email.

Best regards,
Khayal Healthcare Team
`, v.Code, ttlMinutes)
		whatsappText = fmt.Sprintf(`🔐 *Khayal Healthcare Verification*

Your verification code is: *%s*

This code will expire in %d minutes.

Don't share this code with anyone.

- Khayal Healthcare`, v.Code, ttlMinutes)
		return
	}

	subject = "Reset Your Khayal Healthcare Password"
	emailBody = fmt.Sprintf(`Dear User,

You requested to reset your password. Use this verification code:

Verification Code: %s

This code will expire in %d minutes.

If you didn't request this, please ignore this email and your password will remain unchanged.

Best regards,
Khayal Healthcare Team
`, v.Code, ttlMinutes)
	whatsappText = fmt.Sprintf(`🔐 *Password Reset Request*

Your verification code is: *%s*

This code will expire in %d minutes.

If you didn't request this, please ignore this message.

- Khayal Healthcare`, v.Code, ttlMinutes)
	return
}
