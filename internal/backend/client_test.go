package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/models"
)

// fakeBackend answers /analyze with the mock analyzer
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mock := attention.NewMockAnalyzer(11, 0, attention.MatchOptions{})
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		var req models.AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		res, err := mock.Analyze(r.Context(), req.ToRequest())
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: err.Error(), Code: attention.Code(err)})
			return
		}
		json.NewEncoder(w).Encode(models.FromResult(res))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAnalyze(t *testing.T) {
	srv := fakeBackend(t)
	c := NewClient(srv.URL+"/", 5*time.Second)

	res, err := c.Analyze(context.Background(), attention.Request{
		Text:         "I walk alone\nThe city lights\nI walk alone",
		ModelID:      "gpt2",
		TargetPhrase: "walk alone",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt2", res.ModelName)
	assert.Len(t, res.Layers, attention.LayerCount)
	require.NotNil(t, res.Phrase)
	assert.Equal(t, 2, res.Phrase.Total())

	require.NoError(t, c.HealthCheck(context.Background()))
}

func TestClientValidatesLocally(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)

	_, err := c.Analyze(context.Background(), attention.Request{Text: " ", ModelID: "gpt2"})
	assert.ErrorIs(t, err, attention.ErrEmptyInput)
	_, err = c.Analyze(context.Background(), attention.Request{Text: "hi", ModelID: "nope"})
	assert.ErrorIs(t, err, attention.ErrInvalidModel)
	assert.Equal(t, 0, calls)
}

func TestClientFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: attention.ErrBackendUnavailable,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
			want: attention.ErrBackendUnavailable,
		},
		{
			name: "ragged matrix",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(models.AnalyzeResponse{
					ModelName: "gpt2",
					Tokens:    []string{"a", "b"},
					AttentionLayers: []models.AttentionLayer{
						{Layer: 0, AttentionMatrix: [][]float64{{0.5}}, Tokens: []string{"a", "b"}},
					},
				})
			},
			want: attention.ErrBackendUnavailable,
		},
		{
			name: "too few layers",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(models.AnalyzeResponse{ModelName: "gpt2", Tokens: []string{}})
			},
			want: attention.ErrBackendUnavailable,
		},
		{
			name: "backend reports invalid model",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(models.ErrorResponse{Error: "unknown model", Code: "invalid_model"})
			},
			want: attention.ErrInvalidModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Analyze(context.Background(),
				attention.Request{Text: "a b", ModelID: "gpt2"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, 50*time.Millisecond)
	_, err := c.Analyze(context.Background(), attention.Request{Text: "a b", ModelID: "gpt2"})
	assert.ErrorIs(t, err, attention.ErrBackendUnavailable)
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	_, err := c.Analyze(context.Background(), attention.Request{Text: "a b", ModelID: "gpt2"})
	assert.ErrorIs(t, err, attention.ErrBackendUnavailable)
	assert.ErrorIs(t, c.HealthCheck(context.Background()), attention.ErrBackendUnavailable)
}
