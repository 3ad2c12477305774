package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
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

func testCalculator(t *testing.T) *cost.Calculator {
	t.Helper()
	rates, err := cost.ParseRates(map[string]string{
		"gpt-4o-input":           "0.01",
		"gpt-4o-output":          "0.03",
		"gpt-3.5-turbo-input":    "0.001",
		"gpt-3.5-turbo-output":   "0.002",
		"dall-e-3-sd-1024":       "40",
		"dall-e-3-hd-1792":       "120",
		"whisper-1":              "0.1",
		"gpt-3.5-turbo-instruct": "0.5",
	})
	require.NoError(t, err)
	return cost.NewCalculator(rates)
}

type fixture struct {
	server *httptest.Server
	calls  atomic.Int32
	client *Client
}

func newFixture(t *testing.T, handler http.HandlerFunc) *fixture {
	t.Helper()
	f := &fixture{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	f.client = NewClient(Config{APIKey: "sk-test", BaseURL: f.server.URL}, testCalculator(t), WithEstimator(charEstimator{}))
	return f
}

func writeSSE(w http.ResponseWriter, payloads ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, p := range payloads {
		fmt.Fprintf(w, "data: %s\n\n", p)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestMessageService_Stream(t *testing.T) {
	var captured chatRequest
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))

		writeSSE(w,
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":""}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":2}}`,
		)
	})

	conv := conversation.New("ws-1", "user-1")
	persona := &assistant.Assistant{ID: "as-1", Instructions: "Be brief."}
	root := conv.NewUserMessage(conversation.UserMessageInput{Content: "Hi", Model: "gpt-4o", Assistant: persona})

	svc := NewMessageService(f.client, chatcontext.NewBuilder(nil, charEstimator{}))
	stream, err := svc.GenerateMessage(context.Background(), "gpt-4o", root)
	require.NoError(t, err)

	var tokens []string
	for {
		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		tokens = append(tokens, tok.Content)
	}
	assert.Equal(t, []string{"Hel", "lo"}, tokens)

	res, err := stream.Result()
	require.NoError(t, err)
	assert.Equal(t, ai.Usage{InputTokens: 10, OutputTokens: 2}, res.Usage)
	assert.True(t, res.Cost.Equal(cost.NewCount(0.16)), "got %s", res.Cost)

	assert.True(t, captured.Stream)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "Be brief.", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
}

func TestMessageService_CountsChunksWithoutUsage(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"choices":[{"delta":{"content":"a"}}]}`,
			`{"choices":[{"delta":{"content":"b"}}]}`,
			`{"choices":[{"delta":{"content":"c"}}]}`,
		)
	})

	conv := conversation.New("ws-1", "user-1")
	root := conv.NewUserMessage(conversation.UserMessageInput{Content: "12345", Model: "gpt-4o"})

	svc := NewMessageService(f.client, chatcontext.NewBuilder(nil, charEstimator{}))
	stream, err := svc.GenerateMessage(context.Background(), "gpt-4o", root)
	require.NoError(t, err)

	text, res, err := ai.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
	assert.Equal(t, 5, res.Usage.InputTokens)
	assert.Equal(t, 3, res.Usage.OutputTokens)
}

func TestMessageService_ImageTurn(t *testing.T) {
	var raw []byte
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		writeSSE(w, `{"choices":[{"delta":{"content":"ok"}}]}`)
	})

	conv := conversation.New("ws-1", "user-1")
	root := conv.NewUserMessage(conversation.UserMessageInput{
		Content: "What is this?",
		Model:   "gpt-4o",
		Image:   &conversation.ImageFile{StorageKey: "k", Ext: "png", Width: 10, Height: 10},
	})

	builder := chatcontext.NewBuilder(staticFiles("PNGDATA"), charEstimator{})
	stream, err := NewMessageService(f.client, builder).GenerateMessage(context.Background(), "gpt-4o", root)
	require.NoError(t, err)
	_, _, err = ai.Collect(stream)
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, `"type":"image_url"`)
	assert.Contains(t, body, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("PNGDATA")))
	assert.Contains(t, body, `"type":"text","text":"What is this?"`)
}

type staticFiles string

func (s staticFiles) ReadImage(context.Context, *conversation.ImageFile) ([]byte, error) {
	return []byte(s), nil
}

func TestMessageService_Errors(t *testing.T) {
	t.Run("error payload mid-stream", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(w,
				`{"choices":[{"delta":{"content":"partial"}}]}`,
				`{"error":{"message":"rate limited"}}`,
			)
		})
		conv := conversation.New("ws-1", "user-1")
		root := conv.NewUserMessage(conversation.UserMessageInput{Content: "Hi", Model: "gpt-4o"})

		stream, err := NewMessageService(f.client, chatcontext.NewBuilder(nil, charEstimator{})).
			GenerateMessage(context.Background(), "gpt-4o", root)
		require.NoError(t, err)

		tok, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, "partial", tok.Content)

		_, err = stream.Recv()
		var apiErr *ai.ApiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "rate limited", apiErr.Message)

		_, err = stream.Result()
		assert.ErrorIs(t, err, ai.ErrStreamNotSettled)
	})

	t.Run("http status", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
		})
		conv := conversation.New("ws-1", "user-1")
		root := conv.NewUserMessage(conversation.UserMessageInput{Content: "Hi", Model: "gpt-4o"})

		_, err := NewMessageService(f.client, chatcontext.NewBuilder(nil, charEstimator{})).
			GenerateMessage(context.Background(), "gpt-4o", root)
		var apiErr *ai.ApiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "invalid api key", apiErr.Message)
	})

	t.Run("unsupported model", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
		conv := conversation.New("ws-1", "user-1")
		root := conv.NewUserMessage(conversation.UserMessageInput{Content: "Hi"})

		_, err := NewMessageService(f.client, chatcontext.NewBuilder(nil, charEstimator{})).
			GenerateMessage(context.Background(), "claude-3-opus-20240229", root)
		assert.ErrorIs(t, err, ai.ErrModelNotSupported)
		assert.Zero(t, f.calls.Load())
	})
}

func TestCompletionService(t *testing.T) {
	t.Run("instruct model uses completions", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/completions", r.URL.Path)
			writeSSE(w, `{"choices":[{"text":"Once"}]}`, `{"choices":[{"text":" upon"}]}`)
		})
		stream, err := NewCompletionService(f.client).
			GenerateCompletion(context.Background(), "gpt-3.5-turbo-instruct", ai.Params{"prompt": "Tell"})
		require.NoError(t, err)

		text, _, err := ai.Collect(stream)
		require.NoError(t, err)
		assert.Equal(t, "Once upon", text)
	})

	t.Run("chat model with temperature", func(t *testing.T) {
		var captured chatRequest
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			writeSSE(w, `{"choices":[{"delta":{"content":"x"}}]}`)
		})
		stream, err := NewCompletionService(f.client).
			GenerateCompletion(context.Background(), "gpt-4o", ai.Params{"prompt": "Tell", "temperature": "0.7"})
		require.NoError(t, err)
		_, _, err = ai.Collect(stream)
		require.NoError(t, err)

		require.NotNil(t, captured.Temperature)
		assert.InDelta(t, 0.7, *captured.Temperature, 1e-9)
	})

	t.Run("missing prompt", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
		_, err := NewCompletionService(f.client).GenerateCompletion(context.Background(), "gpt-4o", ai.Params{})
		assert.ErrorIs(t, err, ai.ErrInvalidParameters)
		assert.Zero(t, f.calls.Load())
	})
}

func TestCodeCompletionService(t *testing.T) {
	var raw []byte
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		writeSSE(w, `{"choices":[{"delta":{"content":"fmt.Println()"}}]}`)
	})

	stream, err := NewCodeCompletionService(f.client).
		GenerateCodeCompletion(context.Background(), "gpt-4o", "print hello", "Go")
	require.NoError(t, err)
	text, _, err := ai.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "fmt.Println()", text)
	assert.Contains(t, string(raw), "You're Go programming language expert.")
}

func TestTitleService(t *testing.T) {
	t.Run("empty content skips the provider", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
		res, err := NewTitleService(f.client).GenerateTitle(context.Background(), "", "gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "Untitled", res.Title)
		assert.True(t, res.Cost.IsZero())
		assert.Zero(t, f.calls.Load())
	})

	t.Run("chat model", func(t *testing.T) {
		var captured chatRequest
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" \"Trip to Rome\"\nextra"}}],"usage":{"prompt_tokens":100,"completion_tokens":5}}`))
		})
		res, err := NewTitleService(f.client).GenerateTitle(context.Background(), "Planning a trip to Rome in May", "gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "Trip to Rome", res.Title)
		assert.True(t, res.Cost.Equal(cost.NewCount(1.15)), "got %s", res.Cost)

		require.Len(t, captured.Messages, 3)
		assert.Equal(t, "assistant", captured.Messages[2].Role)
		assert.Equal(t, "Title:", captured.Messages[2].Content)
		assert.True(t, strings.HasPrefix(captured.Messages[1].Content.(string), "Summarize the text"))
	})

	t.Run("instruct model", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/completions", r.URL.Path)
			_, _ = w.Write([]byte(`{"choices":[{"text":"Title: Roman Holiday"}]}`))
		})
		res, err := NewTitleService(f.client).GenerateTitle(context.Background(), "Rome", "gpt-3.5-turbo-instruct")
		require.NoError(t, err)
		assert.Equal(t, "Roman Holiday", res.Title)
		assert.True(t, res.Cost.IsZero())
	})
}

func TestImageService(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	var captured imageRequest
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprintf(w, `{"data":[{"b64_json":%q,"revised_prompt":"a red fox"}]}`, base64.StdEncoding.EncodeToString(png))
	})

	svc := NewImageService(f.client)
	res, err := svc.GenerateImage(context.Background(), "dall-e-3", ai.ImageRequest{Params: ai.Params{"prompt": "fox"}})
	require.NoError(t, err)
	assert.Equal(t, png, res.Image)
	assert.Equal(t, "image/png", res.ContentType)
	assert.True(t, res.Cost.Equal(cost.NewCount(40)), "got %s", res.Cost)
	assert.Equal(t, "1024x1024", captured.Size)
	assert.Equal(t, "b64_json", captured.ResponseFormat)
	assert.Equal(t, "a red fox", res.Params["revised_prompt"])

	res, err = svc.GenerateImage(context.Background(), "dall-e-3", ai.ImageRequest{
		Width: 1792, Height: 1024, Params: ai.Params{"prompt": "fox", "quality": "hd"},
	})
	require.NoError(t, err)
	assert.True(t, res.Cost.Equal(cost.NewCount(120)), "got %s", res.Cost)
	assert.Equal(t, "hd", captured.Quality)
}

func TestTranscriptionService(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "en", r.FormValue("language"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "memo.mp3", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "AUDIO", string(data))

		_, _ = w.Write([]byte(`{"text":"hello there","language":"english","duration":12.5,"segments":[{"start":0,"end":1.5,"text":"hello"}]}`))
	})

	res, err := NewTranscriptionService(f.client).GenerateTranscription(
		context.Background(), "whisper-1", strings.NewReader("AUDIO"), "memo.mp3", ai.Params{"language": "en"},
	)
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Text)
	assert.Equal(t, 12.5, res.Duration)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, "hello", res.Segments[0].Text)
	assert.True(t, res.Cost.Equal(cost.NewCount(1.25)), "got %s", res.Cost)
}
