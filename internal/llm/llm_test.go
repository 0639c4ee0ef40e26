package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type verdict struct {
	Confirmed bool   `json:"confirmed"`
	Reason    string `json:"reason"`
}

var verdictSchema = Object(map[string]any{
	"confirmed": Boolean(""),
	"reason":    String("why"),
})

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"openai", Config{Gateway: "openai", APIKey: "k", Model: "gpt-4o"}, false},
		{"default gateway", Config{APIKey: "k", Model: "gpt-4o"}, false},
		{"digitalocean", Config{Gateway: "digitalocean", APIKey: "k", Model: "llama"}, false},
		{"vercel", Config{Gateway: "Vercel", APIKey: "k", Model: "m"}, false},
		{"anthropic", Config{Gateway: "anthropic", APIKey: "k", Model: "claude"}, false},
		{"unknown", Config{Gateway: "bedrock", APIKey: "k", Model: "m"}, true},
		{"missing key", Config{Gateway: "openai", Model: "m"}, true},
		{"missing model", Config{Gateway: "openai", APIKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("New() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if m == nil {
				t.Fatal("New() returned nil model")
			}
		})
	}
}

func TestNew_GatewayBaseURL(t *testing.T) {
	m, err := New(Config{Gateway: GatewayDigitalOcean, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	om := m.(*OpenAIModel)
	if om.config.BaseURL != digitalOceanBaseURL {
		t.Errorf("BaseURL = %q, want %q", om.config.BaseURL, digitalOceanBaseURL)
	}
	if om.structured {
		t.Error("digitalocean should not use the json_schema response format")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}\n", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```JSON\n{\"a\":1}```", `{"a":1}`},
		{"```\n[1,2]\n```", `[1,2]`},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	var v verdict
	for _, text := range []string{"", "not json", "```json\n{\"confirmed\": \n```"} {
		if err := Decode(Request{Name: "verify"}, text, &v); !errors.Is(err, ErrMalformedOutput) {
			t.Errorf("Decode(%q) error = %v, want ErrMalformedOutput", text, err)
		}
	}
}

func TestDecode_Schema(t *testing.T) {
	severitySchema := Object(map[string]any{
		"issues": Array(Object(map[string]any{
			"line":     Integer(""),
			"severity": Enum("", "critical", "warning", "suggestion"),
		}), ""),
	})

	tests := []struct {
		name    string
		req     Request
		text    string
		wantErr bool
	}{
		{"valid", Request{Schema: verdictSchema}, `{"confirmed":true,"reason":"x"}`, false},
		{"fenced valid", Request{Schema: verdictSchema}, "```json\n{\"confirmed\":false,\"reason\":\"\"}\n```", false},
		{"missing key", Request{Schema: verdictSchema}, `{"confirmed":true}`, true},
		{"wrong keys", Request{Schema: verdictSchema}, `{"verdict":"yes"}`, true},
		{"wrong type", Request{Schema: verdictSchema}, `{"confirmed":"yes","reason":"x"}`, true},
		{"extra key", Request{Schema: verdictSchema}, `{"confirmed":true,"reason":"x","score":3}`, true},
		{"not an object", Request{Schema: verdictSchema}, `[true]`, true},
		{"enum", Request{Schema: severitySchema}, `{"issues":[{"line":3,"severity":"error"}]}`, true},
		{"float line", Request{Schema: severitySchema}, `{"issues":[{"line":3.5,"severity":"warning"}]}`, true},
		{"lenient enum", Request{Schema: severitySchema, Lenient: []string{"severity"}}, `{"issues":[{"line":3,"severity":"error"}]}`, false},
		{"lenient keeps type", Request{Schema: severitySchema, Lenient: []string{"severity"}}, `{"issues":[{"line":3,"severity":2}]}`, true},
		{"no schema", Request{}, `{"anything":1}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out map[string]any
			err := Decode(tt.req, tt.text, &out)
			if tt.wantErr && !errors.Is(err, ErrMalformedOutput) {
				t.Errorf("error = %v, want ErrMalformedOutput", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRelaxEnumsLeavesSchemaIntact(t *testing.T) {
	schema := Object(map[string]any{"severity": Enum("", "a", "b")})
	relaxed := relaxEnums(schema, []string{"severity"})

	props := relaxed["properties"].(map[string]any)
	if _, ok := props["severity"].(map[string]any)["enum"]; ok {
		t.Error("enum should be removed from the relaxed copy")
	}
	orig := schema["properties"].(map[string]any)["severity"].(map[string]any)
	if _, ok := orig["enum"]; !ok {
		t.Error("the original schema must keep its enum")
	}
}

func TestMockModel_ValidatesSchema(t *testing.T) {
	m := NewMockModel().On("verify", `{"verdict":"yes"}`)

	var v verdict
	err := m.GenerateStructured(context.Background(), Request{Name: "verify", Schema: verdictSchema, Prompt: "p"}, &v)
	if !errors.Is(err, ErrMalformedOutput) {
		t.Errorf("error = %v, want ErrMalformedOutput", err)
	}
}

func TestObjectSchema(t *testing.T) {
	required, ok := verdictSchema["required"].([]string)
	if !ok {
		t.Fatalf("required has type %T", verdictSchema["required"])
	}
	if strings.Join(required, ",") != "confirmed,reason" {
		t.Errorf("required = %v", required)
	}
	if verdictSchema["additionalProperties"] != false {
		t.Error("object schemas must disallow additional properties")
	}
}

func TestMockModel(t *testing.T) {
	m := NewMockModel().
		On("verify", `{"confirmed":true,"reason":"first"}`, `{"confirmed":false,"reason":"second"}`)

	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		var v verdict
		if err := m.GenerateStructured(ctx, Request{Name: "verify", Prompt: "p"}, &v); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		got = append(got, v.Reason)
	}

	want := "first,second,second"
	if strings.Join(got, ",") != want {
		t.Errorf("responses = %v, want %s", got, want)
	}
	if len(m.Calls("verify")) != 3 {
		t.Errorf("recorded %d calls, want 3", len(m.Calls("verify")))
	}

	var v verdict
	if err := m.GenerateStructured(ctx, Request{Name: "other"}, &v); !errors.Is(err, ErrLLMFailed) {
		t.Errorf("unconfigured name error = %v, want ErrLLMFailed", err)
	}
}

func TestMockModel_FuncAndFail(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockModel().
		OnFunc("verify", func(r Request) (string, error) {
			return `{"confirmed":` + boolString(strings.Contains(r.Prompt, "yes")) + `,"reason":""}`, nil
		}).
		Fail("summary", boom)

	var v verdict
	if err := m.GenerateStructured(context.Background(), Request{Name: "verify", Prompt: "yes"}, &v); err != nil || !v.Confirmed {
		t.Errorf("OnFunc: v=%+v err=%v", v, err)
	}
	if err := m.GenerateStructured(context.Background(), Request{Name: "summary"}, &v); !errors.Is(err, boom) {
		t.Errorf("Fail: err = %v, want boom", err)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicModel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a, err := NewAnthropicModel(Config{APIKey: "test-key", Model: "claude-test", BaseURL: server.URL, MaxRetries: 2})
	if err != nil {
		t.Fatal(err)
	}
	a.retry.initialInterval = time.Millisecond
	return a
}

// anthropicMessage renders a Messages API reply carrying text.
func anthropicMessage(text string) string {
	data, _ := json.Marshal(map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-test",
		"stop_reason":   "end_turn",
		"content":       []map[string]any{{"type": "text", "text": text}},
		"usage":         map[string]any{"input_tokens": 1, "output_tokens": 1},
		"stop_sequence": nil,
	})
	return string(data)
}

func TestAnthropicModel_GenerateStructured(t *testing.T) {
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("missing API key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			System    []struct {
				Text string `json:"text"`
			} `json:"system"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Model != "claude-test" || body.MaxTokens != defaultAnthropicMaxTokens {
			t.Errorf("model = %s max_tokens = %d", body.Model, body.MaxTokens)
		}
		if len(body.System) != 1 || !strings.Contains(body.System[0].Text, `"additionalProperties":false`) {
			t.Errorf("system prompt should carry the schema, got %+v", body.System)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, anthropicMessage("```json\n{\"confirmed\":true,\"reason\":\"real bug\"}\n```"))
	})

	var v verdict
	err := a.GenerateStructured(context.Background(), Request{
		Name: "verify", Schema: verdictSchema, System: "verify", Prompt: "issue",
	}, &v)
	if err != nil {
		t.Fatalf("GenerateStructured: %v", err)
	}
	if !v.Confirmed || v.Reason != "real bug" {
		t.Errorf("got %+v", v)
	}
}

func TestAnthropicModel_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`)
			return
		}
		io.WriteString(w, anthropicMessage(`{"confirmed":false,"reason":"ok"}`))
	})

	var v verdict
	if err := a.GenerateStructured(context.Background(), Request{Name: "verify", Prompt: "p"}, &v); err != nil {
		t.Fatalf("GenerateStructured: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestAnthropicModel_NoRetryOnAuthOrMalformed(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"auth", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, ErrLLMFailed},
		{"malformed", http.StatusOK, anthropicMessage("sure! here you go"), ErrMalformedOutput},
		{"schema mismatch", http.StatusOK, anthropicMessage(`{"verdict":"yes"}`), ErrMalformedOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			var v verdict
			err := a.GenerateStructured(context.Background(), Request{Name: "verify", Schema: verdictSchema, Prompt: "p"}, &v)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if calls.Load() != 1 {
				t.Errorf("calls = %d, want 1", calls.Load())
			}
		})
	}
}

func TestAnthropicModel_StatusErrorMapping(t *testing.T) {
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	})

	_, err := a.complete(context.Background(), Request{Name: "verify", Prompt: "p"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v (%T), want *StatusError", err, err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !statusErr.Transient() {
		t.Errorf("status error = %+v", statusErr)
	}
}

func TestOpenAIModel_JSONSchemaResponseFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		format, _ := body["response_format"].(map[string]any)
		if format["type"] != "json_schema" {
			t.Errorf("response_format = %v", body["response_format"])
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"confirmed\":true,\"reason\":\"schema\"}"}
			}]
		}`)
	}))
	defer server.Close()

	m, err := NewOpenAIModel(Config{APIKey: "k", Model: "gpt-4o", BaseURL: server.URL + "/"}, true)
	if err != nil {
		t.Fatal(err)
	}

	var v verdict
	err = m.GenerateStructured(context.Background(), Request{
		Name: "verify", Schema: verdictSchema, System: "s", Prompt: "p",
	}, &v)
	if err != nil {
		t.Fatalf("GenerateStructured: %v", err)
	}
	if !v.Confirmed || v.Reason != "schema" {
		t.Errorf("got %+v", v)
	}
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	a, err := NewAnthropicModel(Config{APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	var v verdict
	if err := a.GenerateStructured(context.Background(), Request{Name: "x"}, &v); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}
