package stt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_TranscribeThenClassify(t *testing.T) {
	var chatBody map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"hoy revisamos el pozo norte"}`)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&chatBody))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"titulo\":\"Pozo norte\"}"}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, quietLogger())
	require.NoError(t, err)

	text, err := p.Transcribe(context.Background(), writeClip(t, []byte("audio-bytes")))
	require.NoError(t, err)
	assert.Equal(t, `{"titulo":"Pozo norte"}`, text)

	messages, ok := chatBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	assert.Contains(t, user["content"], "hoy revisamos el pozo norte")
}

func TestOpenAI_APIErrorIsTranscriptionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, quietLogger())
	require.NoError(t, err)

	_, err = p.Transcribe(context.Background(), writeClip(t, []byte("audio-bytes")))
	assert.ErrorIs(t, err, ErrTranscription)
}

func TestOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{}, quietLogger())
	assert.Error(t, err)
}

func TestCreateProvider(t *testing.T) {
	p, err := CreateProvider(Settings{GeminiAPIKey: "k"}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())

	p, err = CreateProvider(Settings{Provider: "OpenAI", OpenAIKey: "k"}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = CreateProvider(Settings{Provider: "fpt"}, quietLogger())
	assert.Error(t, err)
}
