package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultAPIURL = "https://api.telegram.org"
	ParseModeHTML = "HTML"
)

// APIError is a Bot API reply with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Client talks to the Telegram Bot API over HTTP.
type Client struct {
	httpClient  *resty.Client
	token       string
	pollTimeout time.Duration
	logger      *zap.Logger
}

// NewClient creates a Bot API client. pollTimeout is the long-poll timeout of getUpdates.
func NewClient(baseURL, token string, pollTimeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL+"/bot"+token).
		SetTimeout(pollTimeout+10*time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient:  client,
		token:       token,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// call posts a JSON body to method and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, body interface{}, out interface{}) error {
	var envelope apiResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&envelope).
		SetError(&envelope).
		Post("/" + method)
	if err != nil {
		return c.transportError(method, err)
	}
	return c.decode(method, resp, &envelope, out)
}

// transportError strips the request URL, which carries the bot token, from
// a failed call.
func (c *Client) transportError(method string, err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	if c.token != "" && strings.Contains(err.Error(), c.token) {
		return fmt.Errorf("failed to call telegram %s: %s", method, strings.ReplaceAll(err.Error(), c.token, "<token>"))
	}
	return fmt.Errorf("failed to call telegram %s: %w", method, err)
}

func (c *Client) decode(method string, resp *resty.Response, envelope *apiResponse, out interface{}) error {
	if !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode()
		}
		c.logger.Warn("Telegram API returned error",
			zap.String("method", method),
			zap.Int("status", code),
			zap.String("description", envelope.Description),
		)
		return &APIError{Method: method, Code: code, Description: envelope.Description}
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to decode telegram %s result: %w", method, err)
	}
	return nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]interface{}{
		"offset":          offset,
		"timeout":         int(c.pollTimeout / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}, &updates)
	return updates, err
}

// SendMessage sends HTML formatted text with an optional inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (*Message, error) {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": ParseModeHTML,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText replaces the text and keyboard of a sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": ParseModeHTML,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", body, nil)
}

// DeleteMessage removes a message from the chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// AnswerCallbackQuery stops the client-side spinner of a button press.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	body := map[string]interface{}{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", body, nil)
}

// SendDocument uploads a file as multipart form data.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) (*Message, error) {
	var envelope apiResponse
	form := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	if caption != "" {
		form["caption"] = caption
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(form).
		SetFileReader("document", fileName, bytes.NewReader(data)).
		SetResult(&envelope).
		SetError(&envelope).
		Post("/sendDocument")
	if err != nil {
		return nil, c.transportError("sendDocument", err)
	}
	var msg Message
	if err := c.decode("sendDocument", resp, &envelope, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
