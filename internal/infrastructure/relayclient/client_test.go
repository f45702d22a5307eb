package relayclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

func TestCompleteReturnsFirstPartText(t *testing.T) {
	var got domain.GenerationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/transcribe" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"* [a](b)"}]}}]}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", time.Second)
	text, err := client.Complete(context.Background(), domain.Prompt{
		Text:        "links",
		Mode:        domain.ResponseModeMarkdown,
		NeedsSearch: true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "* [a](b)" {
		t.Fatalf("unexpected text %q", text)
	}
	if !got.NeedsSearch || got.GenerationConfig != nil {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}

func TestCompleteSurfacesRelayErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "error field",
			status: http.StatusInternalServerError,
			body:   `{"error":"API key is not configured on the server."}`,
			want:   "API key is not configured on the server.",
		},
		{
			name:   "json without error",
			status: http.StatusBadGateway,
			body:   `{"detail":"x"}`,
			want:   "API request failed with status 502",
		},
		{
			name:   "not json",
			status: http.StatusServiceUnavailable,
			body:   "<html>unavailable</html>",
			want:   "API request failed with status 503.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := New(server.URL, time.Second).Complete(context.Background(), domain.Prompt{Text: "x"})
			if domain.UpstreamStatus(err) != tc.status {
				t.Fatalf("expected status %d, got %v", tc.status, err)
			}
			if got := domain.UserMessage(err); got != tc.want {
				t.Fatalf("message = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCompleteExplainsEmptyResponses(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{
			body: `{"candidates":[{"finishReason":"RECITATION"}]}`,
			want: "The model stopped processing for the following reason: RECITATION. This may be due to safety settings or an issue with the prompt.",
		},
		{
			body: `{}`,
			want: "Could not process the request. The response from the model was empty.",
		},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(tc.body))
		}))
		_, err := New(server.URL, time.Second).Complete(context.Background(), domain.Prompt{Text: "x"})
		server.Close()

		if !domain.IsKind(err, domain.ErrEmptyResponse) || domain.UserMessage(err) != tc.want {
			t.Fatalf("body %s: unexpected error %v", tc.body, err)
		}
	}
}

func TestCompleteNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, time.Second).Complete(context.Background(), domain.Prompt{Text: "x"})
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
