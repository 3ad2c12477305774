package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisuite/internal/ai"
	"aisuite/internal/ai/chatcontext"
	"aisuite/internal/ai/cost"
	"aisuite/internal/model/assistant"
	"aisuite/internal/model/conversation"
)

type charEstimator struct{}

func (charEstimator) Count(text string) int { return len(text) }

const haiku = ai.Model("claude-3-haiku-20240307")

func newClient(t *testing.T, calls *atomic.Int32, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
		assert.Equal(t, APIVersion, r.Header.Get("Anthropic-Version"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	rates, err := cost.ParseRates(map[string]string{
		"claude-3-haiku-20240307-input":  "0.002",
		"claude-3-haiku-20240307-output": "0.01",
	})
	require.NoError(t, err)
	return NewClient(Config{APIKey: "key-1", BaseURL: srv.URL}, cost.NewCalculator(rates), nil)
}

func writeEvents(w http.ResponseWriter, events ...[2]string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, ev := range events {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev[0], ev[1])
	}
}

func TestMessageService_Stream(t *testing.T) {
	var calls atomic.Int32
	var captured map[string]any
	client := newClient(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))

		writeEvents(w,
			[2]string{"message_start", `{"type":"message_start","message":{"usage":{"input_tokens":25,"output_tokens":1}}}`},
			[2]string{"content_block_start", `{"type":"content_block_start","index":0}`},
			[2]string{"ping", `{"type":"ping"}`},
			[2]string{"content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Bon"}}`},
			[2]string{"content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"jour"}}`},
			[2]string{"message_delta", `{"type":"message_delta","usage":{"output_tokens":14}}`},
			[2]string{"message_stop", `{"type":"message_stop"}`},
		)
	})

	conv := conversation.New("ws-1", "user-1")
	persona := &assistant.Assistant{ID: "as-1", Instructions: "Speak French."}
	first := conv.NewUserMessage(conversation.UserMessageInput{Content: "Hi", Model: haiku.String()})
	reply := conv.NewAssistantMessage("Salut", first, cost.Zero, haiku.String(), nil)
	leaf := conv.NewUserMessage(conversation.UserMessageInput{
		Content: "Translate", Model: haiku.String(), Parent: reply, Assistant: persona, Quote: "Salut",
	})

	stream, err := NewMessageService(client, chatcontext.NewBuilder(nil, charEstimator{})).
		GenerateMessage(context.Background(), haiku, leaf)
	require.NoError(t, err)

	text, res, err := ai.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", text)
	assert.Equal(t, ai.Usage{InputTokens: 25, OutputTokens: 15}, res.Usage)
	assert.True(t, res.Cost.Equal(cost.NewCount(0.2)), "got %s", res.Cost)

	assert.Equal(t, "Speak French.", captured["system"])
	assert.Equal(t, float64(4096), captured["max_tokens"])
	assert.Equal(t, true, captured["stream"])

	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 3)
	last := msgs[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Contains(t, last["content"], "The user is referring to this in particular:\nSalut")
}

func TestMessageService_ImageBlock(t *testing.T) {
	var calls atomic.Int32
	var raw []byte
	client := newClient(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		writeEvents(w, [2]string{"content_block_delta", `{"type":"content_block_delta","delta":{"text":"A cat"}}`})
	})

	conv := conversation.New("ws-1", "user-1")
	leaf := conv.NewUserMessage(conversation.UserMessageInput{
		Content: "What is it?",
		Image:   &conversation.ImageFile{StorageKey: "k", Ext: "jpg", Width: 100, Height: 100},
	})

	builder := chatcontext.NewBuilder(staticFiles("JPEG"), charEstimator{})
	stream, err := NewMessageService(client, builder).GenerateMessage(context.Background(), haiku, leaf)
	require.NoError(t, err)
	_, _, err = ai.Collect(stream)
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"source":{"type":"base64","media_type":"image/jpeg","data":"SlBFRw=="}`)
}

type staticFiles string

func (s staticFiles) ReadImage(context.Context, *conversation.ImageFile) ([]byte, error) {
	return []byte(s), nil
}

func TestMessageService_ErrorEvent(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w,
			[2]string{"content_block_delta", `{"type":"content_block_delta","delta":{"text":"Hel"}}`},
			[2]string{"error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
		)
	})

	conv := conversation.New("ws-1", "user-1")
	leaf := conv.NewUserMessage(conversation.UserMessageInput{Content: "Hi"})
	stream, err := NewMessageService(client, chatcontext.NewBuilder(nil, charEstimator{})).
		GenerateMessage(context.Background(), haiku, leaf)
	require.NoError(t, err)

	text, _, err := ai.Collect(stream)
	var apiErr *ai.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Overloaded", apiErr.Message)
	assert.Equal(t, "Hel", text)
}

func TestCompletionService_Temperature(t *testing.T) {
	var calls atomic.Int32
	var captured messagesRequest
	client := newClient(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeEvents(w, [2]string{"content_block_delta", `{"type":"content_block_delta","delta":{"text":"ok"}}`})
	})

	stream, err := NewCompletionService(client).GenerateCompletion(context.Background(), haiku, ai.Params{
		"prompt": "Write a haiku", "temperature": 1.2,
	})
	require.NoError(t, err)
	_, _, err = ai.Collect(stream)
	require.NoError(t, err)

	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.6, *captured.Temperature, 1e-9)
	assert.Empty(t, captured.System)
}

func TestTitleService(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		var calls atomic.Int32
		client := newClient(t, &calls, func(w http.ResponseWriter, r *http.Request) {})
		res, err := NewTitleService(client).GenerateTitle(context.Background(), "   ", haiku)
		require.NoError(t, err)
		assert.Equal(t, ai.UntitledTitle, res.Title)
		assert.True(t, res.Cost.IsZero())
		assert.Zero(t, calls.Load())
	})

	t.Run("prefilled response", func(t *testing.T) {
		var calls atomic.Int32
		var captured messagesRequest
		client := newClient(t, &calls, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_, _ = w.Write([]byte(`{"content":[{"type":"text","text":" Weekend in Lisbon"}],"usage":{"input_tokens":50,"output_tokens":4}}`))
		})
		res, err := NewTitleService(client).GenerateTitle(context.Background(), "We spent a weekend in Lisbon", haiku)
		require.NoError(t, err)
		assert.Equal(t, "Weekend in Lisbon", res.Title)
		assert.True(t, res.Cost.Equal(cost.NewCount(0.14)), "got %s", res.Cost)
		assert.Equal(t, titleMaxTokens, captured.MaxTokens)
		assert.False(t, captured.Stream)
		assert.Equal(t, ai.TitleSystemPrompt, captured.System)
	})

	t.Run("provider failure", func(t *testing.T) {
		var calls atomic.Int32
		client := newClient(t, &calls, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
		})
		_, err := NewTitleService(client).GenerateTitle(context.Background(), "content", haiku)
		assert.True(t, ai.IsProviderError(err))
	})
}
