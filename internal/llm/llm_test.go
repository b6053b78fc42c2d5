package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *ResponseSchema {
	return &ResponseSchema{
		Name: "Answer",
		Definition: &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"mood":  {Type: jsonschema.String, Enum: []string{"up", "down"}},
				"items": {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.Number}},
			},
			Required:             []string{"mood", "items"},
			AdditionalProperties: false,
		},
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-2024-08-06",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"mood\":\"up\",\"items\":[1]}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("test-key", srv.URL+"/v1", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())

	resp, err := client.Complete(context.Background(), &CompletionRequest{
		System:   "be terse",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
		Schema:   testSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"mood":"up","items":[1]}`, resp.Content)
	assert.Equal(t, 12, resp.TokensIn)
	assert.Equal(t, 7, resp.TokensOut)
	assert.Equal(t, "stop", resp.StopReason)

	assert.Equal(t, DefaultOpenAIModel, captured["model"])
	_, sent := captured["max_tokens"]
	assert.False(t, sent, "an unset budget leaves max_tokens to the model")
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	format := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	js := format["json_schema"].(map[string]any)
	assert.Equal(t, "Answer", js["name"])
	assert.Equal(t, true, js["strict"])
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"x","object":"chat.completion","model":"m","choices":[]}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("k", srv.URL+"/v1", "m")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &CompletionRequest{Messages: []ChatMessage{{Role: "user", Content: "x"}}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("k", srv.URL+"/v1", "m")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &CompletionRequest{Messages: []ChatMessage{{Role: "user", Content: "x"}}})
	assert.Error(t, err)
}

func TestCompletionBudget(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		requested int
		fallback  int
		want      int
	}{
		{"unset takes model limit", "claude-3-5-sonnet-20241022", 0, 4096, 8192},
		{"over limit is lowered", "claude-3-5-sonnet-20241022", 16384, 4096, 8192},
		{"under limit is kept", "claude-3-5-sonnet-20241022", 2048, 4096, 2048},
		{"larger family limit", "claude-3-7-sonnet-20250219", 16384, 4096, 16384},
		{"unknown model unset", "claude-next", 0, 4096, 4096},
		{"unknown model keeps request", "claude-next", 50000, 4096, 50000},
		{"gemini over limit", "gemini-1.5-pro", 16384, 0, 8192},
	}
	limits := append(append([]outputLimit{}, anthropicOutputLimits...), geminiOutputLimits...)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, completionBudget(limits, tt.model, tt.requested, tt.fallback))
		})
	}
}

const anthropicReply = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-3-5-sonnet-20241022",
	"content": [{"type": "text", "text": "{\"mood\":\"down\",\"items\":[]}"}],
	"stop_reason": "end_turn",
	"stop_sequence": null,
	"usage": {"input_tokens": 30, "output_tokens": 9}
}`

func anthropicServer(t *testing.T, reply string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		*captured = req

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicClientComplete(t *testing.T) {
	var captured map[string]any
	srv := anthropicServer(t, anthropicReply, &captured)

	client, err := NewAnthropicClient("test-key", srv.URL+"/", "")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", client.Name())

	resp, err := client.Complete(context.Background(), &CompletionRequest{
		System:   "be terse",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
		Schema:   testSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"mood":"down","items":[]}`, resp.Content)
	assert.Equal(t, 30, resp.TokensIn)
	assert.Equal(t, 9, resp.TokensOut)
	assert.Equal(t, "end_turn", resp.StopReason)

	assert.Equal(t, DefaultAnthropicModel, captured["model"])
	assert.Equal(t, float64(8192), captured["max_tokens"])
	assert.NotContains(t, captured, "system")

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	first := messages[0].(map[string]any)
	assert.Equal(t, "user", first["role"])

	blocks := first["content"].([]any)
	require.Len(t, blocks, 2)
	preamble := blocks[0].(map[string]any)["text"].(string)
	assert.True(t, strings.HasPrefix(preamble, "be terse\n\n"))
	assert.Contains(t, preamble, `"enum":["up","down"]`)
	assert.Equal(t, "hello", blocks[1].(map[string]any)["text"])
}

func TestAnthropicClientCapsMaxTokens(t *testing.T) {
	var captured map[string]any
	srv := anthropicServer(t, anthropicReply, &captured)

	client, err := NewAnthropicClient("test-key", srv.URL+"/", "claude-3-5-sonnet-20241022")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &CompletionRequest{
		Messages:  []ChatMessage{{Role: "user", Content: "hello"}},
		MaxTokens: 16384,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(8192), captured["max_tokens"])

	blocks := captured["messages"].([]any)[0].(map[string]any)["content"].([]any)
	assert.Len(t, blocks, 1, "no preamble without system text or schema")
}

func TestAnthropicClientEmptyContent(t *testing.T) {
	var captured map[string]any
	srv := anthropicServer(t, `{"id":"msg_02","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022","content":[],"stop_reason":"max_tokens","stop_sequence":null,"usage":{"input_tokens":30,"output_tokens":0}}`, &captured)

	client, err := NewAnthropicClient("test-key", srv.URL+"/", "")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &CompletionRequest{Messages: []ChatMessage{{Role: "user", Content: "hello"}}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func compatServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		*captured = req

		reply, _ := json.Marshal(map[string]any{
			"id":     "chatcmpl-2",
			"object": "chat.completion",
			"model":  "llama3",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 21, "completion_tokens": 5, "total_tokens": 26},
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompatClientComplete(t *testing.T) {
	var captured map[string]any
	srv := compatServer(t, `{"mood":"up","items":[2]}`, &captured)

	client, err := NewCompatClient(srv.URL+"/v1", "", "llama3")
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), &CompletionRequest{
		System:   "be terse",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
		Schema:   testSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"mood":"up","items":[2]}`, resp.Content)
	assert.Equal(t, "llama3", resp.Model)
	assert.Equal(t, 21, resp.TokensIn)
	assert.Equal(t, 5, resp.TokensOut)

	assert.Equal(t, "llama3", captured["model"])
	format := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])

	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestCompatClientPlainMode(t *testing.T) {
	var captured map[string]any
	srv := compatServer(t, "plain text", &captured)

	client, err := NewCompatClient(srv.URL+"/v1", "k", "llama3")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &CompletionRequest{Messages: []ChatMessage{{Role: "user", Content: "hello"}}})
	require.NoError(t, err)
	assert.NotContains(t, captured, "response_format")

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestCompatClientEmptyContent(t *testing.T) {
	var captured map[string]any
	srv := compatServer(t, "", &captured)

	client, err := NewCompatClient(srv.URL+"/v1", "", "llama3")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &CompletionRequest{Messages: []ChatMessage{{Role: "user", Content: "hello"}}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, Options{Provider: "mystery"})
	assert.Error(t, err)

	_, err = NewClient(ctx, Options{Provider: ProviderOpenAI})
	assert.Error(t, err, "api key is required")

	c, err := NewClient(ctx, Options{Provider: "OpenAI", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = NewClient(ctx, Options{Provider: ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	_, err = NewClient(ctx, Options{Provider: ProviderCompat, Model: "llama3"})
	assert.Error(t, err, "base url is required")

	c, err = NewClient(ctx, Options{Provider: ProviderCompat, BaseURL: "http://localhost:11434/v1", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "compat", c.Name())
}

func TestSchemaInstruction(t *testing.T) {
	s, err := schemaInstruction(nil)
	require.NoError(t, err)
	assert.Empty(t, s)

	s, err = schemaInstruction(testSchema())
	require.NoError(t, err)
	assert.Contains(t, s, "Answer")
	assert.Contains(t, s, `"enum":["up","down"]`)
}

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(testSchema().Definition)

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"mood", "items"}, s.Required)

	mood := s.Properties["mood"]
	require.NotNil(t, mood)
	assert.Equal(t, genai.TypeString, mood.Type)
	assert.Equal(t, "enum", mood.Format)
	assert.Equal(t, []string{"up", "down"}, mood.Enum)

	items := s.Properties["items"]
	require.NotNil(t, items)
	assert.Equal(t, genai.TypeArray, items.Type)
	require.NotNil(t, items.Items)
	assert.Equal(t, genai.TypeNumber, items.Items.Type)
}
