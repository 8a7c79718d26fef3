package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captured struct {
	path string
	body map[string]interface{}
}

func newTestServer(t *testing.T, reply string, status int, got *captured) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		if r.Header.Get("Content-Type") == "application/json" {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "TOKEN", time.Second, zap.NewNop())
}

func TestGetUpdates(t *testing.T) {
	var got captured
	c := newTestServer(t, `{"ok":true,"result":[
		{"update_id":10,"message":{"message_id":5,"from":{"id":1,"first_name":"Olga"},"chat":{"id":1,"type":"private"},"text":"/start"}},
		{"update_id":11,"callback_query":{"id":"cb1","from":{"id":42,"first_name":"Jane"},"message":{"message_id":6,"chat":{"id":42}},"data":"accept_3"}}
	]}`, http.StatusOK, &got)

	updates, err := c.GetUpdates(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "/botTOKEN/getUpdates", got.path)
	assert.Equal(t, float64(10), got.body["offset"])
	assert.Equal(t, float64(1), got.body["timeout"])

	require.Len(t, updates, 2)
	assert.Equal(t, "/start", updates[0].Message.Text)
	assert.Equal(t, int64(1), updates[0].Message.From.ID)
	require.NotNil(t, updates[1].CallbackQuery)
	assert.Equal(t, "accept_3", updates[1].CallbackQuery.Data)
	assert.Equal(t, int64(42), updates[1].CallbackQuery.Message.Chat.ID)
}

func TestSendMessage_WithKeyboard(t *testing.T) {
	var got captured
	c := newTestServer(t, `{"ok":true,"result":{"message_id":77,"chat":{"id":1}}}`, http.StatusOK, &got)

	msg, err := c.SendMessage(context.Background(), 1, "hi", Keyboard(Row(Button("Go", "go"))))
	require.NoError(t, err)
	assert.Equal(t, int64(77), msg.MessageID)
	assert.Equal(t, "/botTOKEN/sendMessage", got.path)
	assert.Equal(t, "hi", got.body["text"])
	assert.Equal(t, "HTML", got.body["parse_mode"])

	markup := got.body["reply_markup"].(map[string]interface{})
	rows := markup["inline_keyboard"].([]interface{})
	btn := rows[0].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "go", btn["callback_data"])
}

func TestAPIError(t *testing.T) {
	var got captured
	c := newTestServer(t, `{"ok":false,"error_code":400,"description":"Bad Request: message to delete not found"}`,
		http.StatusBadRequest, &got)

	err := c.DeleteMessage(context.Background(), 1, 2)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "deleteMessage", apiErr.Method)
	assert.Equal(t, float64(2), got.body["message_id"])
}

func TestSendDocument_Multipart(t *testing.T) {
	var fileName, chatID, caption string
	var content []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		chatID = r.FormValue("chat_id")
		caption = r.FormValue("caption")
		f, hdr, err := r.FormFile("document")
		require.NoError(t, err)
		defer f.Close()
		fileName = hdr.Filename
		content, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":9,"chat":{"id":5}}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "T", time.Second, zap.NewNop())
	msg, err := c.SendDocument(context.Background(), 5, "report.xlsx", []byte("xlsx"), "Таблица доставок")
	require.NoError(t, err)
	assert.Equal(t, int64(9), msg.MessageID)
	assert.Equal(t, "5", chatID)
	assert.Equal(t, "Таблица доставок", caption)
	assert.Equal(t, "report.xlsx", fileName)
	assert.Equal(t, []byte("xlsx"), content)
}

func TestAnswerCallbackQuery(t *testing.T) {
	var got captured
	c := newTestServer(t, `{"ok":true,"result":true}`, http.StatusOK, &got)
	require.NoError(t, c.AnswerCallbackQuery(context.Background(), "cb1", ""))
	assert.Equal(t, "cb1", got.body["callback_query_id"])
	_, hasText := got.body["text"]
	assert.False(t, hasText)
}

func TestTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	c := NewClient(srv.URL, "123456:SECRET-TOKEN", time.Second, zap.NewNop())

	_, err := c.GetUpdates(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "getUpdates")
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")

	_, err = c.SendDocument(context.Background(), 1, "a.xlsx", []byte("x"), "")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
}

func TestTransportErrorKeepsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "123456:SECRET-TOKEN", time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetUpdates(ctx, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
}
