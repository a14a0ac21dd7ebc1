package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chadiek/interview-coach/internal/interview"
)

var testCtx = interview.Context{Interviewer: "Jordan", PracticeOption: "Mock Interview", Topic: "Arrays"}

func TestCerebras_NoKey(t *testing.T) {
	c := NewCerebrasClient("", "model")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.NextUtterance(ctx, nil, testCtx); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func TestCerebras_HTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte("oops")) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("not-json")) }},
		{"empty_choices", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
		{"blank_message", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  "}}]}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewCerebrasClient("key", "model")
			c.HTTPClient = &http.Client{Timeout: 1 * time.Second, Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
				req.URL.Scheme = "http"
				req.URL.Host = srv.Listener.Addr().String()
				return http.DefaultTransport.RoundTrip(req)
			})}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := c.NextUtterance(ctx, nil, testCtx); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestCerebras_SendsConversation(t *testing.T) {
	var got chatCompletionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Tell me about a project. "}}]}`))
	}))
	defer srv.Close()

	c := NewCerebrasClient("key", "llama")
	c.Endpoint = srv.URL
	history := []interview.Turn{
		{Speaker: interview.SpeakerInterviewer, Content: "Hello!"},
		{Speaker: interview.SpeakerRequester, Content: "I use Java"},
	}
	out, err := c.NextUtterance(context.Background(), history, testCtx)
	require.NoError(t, err)
	assert.Equal(t, "Tell me about a project.", out)

	assert.Equal(t, "llama", got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Jordan")
	assert.Equal(t, chatMessage{Role: "assistant", Content: "Hello!"}, got.Messages[1])
	assert.Equal(t, chatMessage{Role: "user", Content: "I use Java"}, got.Messages[2])
}

func TestChatMessages_EmptyHistoryAsksForGreeting(t *testing.T) {
	msgs := chatMessages(nil, testCtx)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "introduce yourself as Jordan")
	assert.Contains(t, msgs[1].Content, "Arrays")
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
