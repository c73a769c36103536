package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
)

const greenAPIBase = "https://api.green-api.com"

var nonDigits = regexp.MustCompile(`\D`)

// WhatsAppClient — отправка сообщений через Green API (или имитация в dry-run).
type WhatsAppClient struct {
	InstanceID string
	Token      string
	DryRun     bool
	BaseURL    string
	Client     *http.Client
}

func NewWhatsAppClient(instanceID, token string, dryRun bool) *WhatsAppClient {
	return &WhatsAppClient{
		InstanceID: instanceID,
		Token:      token,
		DryRun:     dryRun,
		BaseURL:    greenAPIBase,
		Client:     &http.Client{},
	}
}

type sendMessageResponse struct {
	IDMessage string `json:"idMessage"`
}

// Send отправляет текст на номер; дедлайн берётся из ctx.
func (c *WhatsAppClient) Send(ctx context.Context, phone, text string) error {
	if c.DryRun || c.InstanceID == "" || c.Token == "" {
		log.Printf("[whatsapp][dry-run] to=%s text=%q", phone, text)
		return nil
	}

	chatID := FormatPakistaniNumber(phone) + "@c.us"
	body, err := json.Marshal(map[string]string{
		"chatId":  chatID,
		"message": text,
	})
	if err != nil {
		return fmt.Errorf("whatsapp send: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/waInstance%s/sendMessage/%s", c.BaseURL, c.InstanceID, c.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp send: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whatsapp send: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var result sendMessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("whatsapp send: parse response: %w", err)
	}
	if result.IDMessage == "" {
		return fmt.Errorf("whatsapp send: empty idMessage in response: %s", string(respBody))
	}
	return nil
}

// FormatPakistaniNumber нормализует номер к формату 92XXXXXXXXXX.
func FormatPakistaniNumber(number string) string {
	digits := nonDigits.ReplaceAllString(number, "")

	switch {
	case len(digits) >= 2 && digits[:2] == "92":
		// уже с кодом страны
		return digits
	case len(digits) >= 2 && digits[:2] == "03":
		// локальный формат 03xxxxxxxxx
		return "92" + digits[1:]
	case len(digits) == 10 && digits[0] == '3':
		return "92" + digits
	default:
		for len(digits) > 0 && digits[0] == '0' {
			digits = digits[1:]
		}
		return "92" + digits
	}
}
