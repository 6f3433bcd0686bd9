// Package accessgate управляет членством пользователей в закрытой группе
// через Telegram Bot API. Операции Admit и Expel идемпотентны и могут
// безопасно повторяться после уже зафиксированного изменения состояния;
// Notify доставляет сообщение пользователю по принципу best-effort.
package accessgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/magabrotheeeer/vip-access/internal/config"
)

// Client клиент Telegram Bot API.
type Client struct {
	apiURL     string
	botToken   string
	httpClient *http.Client
}

// NewClient создаёт новый клиент с ограниченным таймаутом запросов.
func NewClient(cfg config.Telegram) *Client {
	return &Client{
		apiURL:     cfg.APIURL,
		botToken:   cfg.BotToken,
		httpClient: &http.Client{Timeout: cfg.TimeoutBot},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, params any) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.botToken, method)
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(params); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("telegram: %s failed: %s", method, result.Description)
	}
	return nil
}

// Admit открывает пользователю вход в группу, снимая бан.
// Повторный вызов для уже допущенного пользователя безвреден.
func (c *Client) Admit(ctx context.Context, chatID, subjectID int64) error {
	const op = "accessgate.Admit"
	err := c.call(ctx, "unbanChatMember", map[string]any{
		"chat_id":        chatID,
		"user_id":        subjectID,
		"only_if_banned": true,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Expel исключает пользователя из группы.
func (c *Client) Expel(ctx context.Context, chatID, subjectID int64) error {
	const op = "accessgate.Expel"
	err := c.call(ctx, "banChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": subjectID,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Notify отправляет пользователю личное сообщение.
func (c *Client) Notify(ctx context.Context, subjectID int64, text string) error {
	const op = "accessgate.Notify"
	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id": subjectID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
