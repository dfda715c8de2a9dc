package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"voicenotes/internal/ai"
)

const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel    = "gemini-1.5-pro-latest"

	geminiScope = "https://www.googleapis.com/auth/generative-language"
)

// GeminiConfig configures the Gemini provider. Either APIKey or Credentials
// must be set.
type GeminiConfig struct {
	APIKey string
	// Credentials is a service-account JSON document or a path to one
	Credentials string
	Model       string
	Endpoint    string
	Instruction string
	// FallbackMIME is declared when the clip's type cannot be sniffed
	FallbackMIME string
	// Timeout of 0 leaves the transport default in place
	Timeout time.Duration
}

// GeminiProvider sends clips inline to the Generative Language generateContent API
type GeminiProvider struct {
	cfg        GeminiConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeminiProvider creates a Gemini provider. With an API key the key is
// passed as a query parameter; otherwise requests are signed with an OAuth2
// token source built from the service-account credentials.
func NewGeminiProvider(cfg GeminiConfig, logger *slog.Logger) (*GeminiProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gemini")

	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGeminiEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Instruction == "" {
		cfg.Instruction = ai.DefaultInstruction
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Credentials = strings.TrimSpace(cfg.Credentials)

	client := &http.Client{Timeout: cfg.Timeout}

	if cfg.APIKey == "" {
		if cfg.Credentials == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY or GEMINI_CREDENTIALS must be set")
		}
		jsonData := []byte(cfg.Credentials)
		if !strings.HasPrefix(cfg.Credentials, "{") {
			logger.Info("reading service account file", "path", cfg.Credentials)
			data, err := os.ReadFile(cfg.Credentials)
			if err != nil {
				return nil, fmt.Errorf("failed to read credentials file '%s': %w", cfg.Credentials, err)
			}
			jsonData = data
		}

		ctx := context.Background()
		creds, err := google.CredentialsFromJSON(ctx, jsonData, geminiScope)
		if err != nil {
			return nil, fmt.Errorf("failed to create credentials from JSON: %w", err)
		}
		client = oauth2.NewClient(ctx, creds.TokenSource)
		client.Timeout = cfg.Timeout
		logger.Info("using service account authentication")
	} else {
		logger.Info("using API key authentication")
	}

	return &GeminiProvider{
		cfg:        cfg,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Transcribe reads the clip, sends it with the instruction prompt and returns
// the first text candidate.
func (p *GeminiProvider) Transcribe(ctx context.Context, uri string) (string, error) {
	startTime := time.Now()

	audio, mime, err := readClip(uri, p.cfg.FallbackMIME)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	p.logger.Debug("processing audio file", "uri", uri, "bytes", len(audio), "mime", mime)

	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: p.cfg.Instruction},
				{InlineData: &geminiInlineData{
					MimeType: mime,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
			},
		}},
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrTranscription, err)
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent", p.cfg.Endpoint, url.PathEscape(p.cfg.Model))
	if p.cfg.APIKey != "" {
		apiURL += "?key=" + url.QueryEscape(p.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqJSON))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrTranscription, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %v", ErrTranscription, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response body: %v", ErrTranscription, err)
	}

	var parsed geminiResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && parsed.Error != nil {
			p.logger.Warn("API error", "status", resp.StatusCode, "api_status", parsed.Error.Status, "message", parsed.Error.Message)
			return "", fmt.Errorf("%w: Gemini API error %d: %s", ErrTranscription, resp.StatusCode, parsed.Error.Message)
		}
		p.logger.Warn("API error", "status", resp.StatusCode, "body", preview(body))
		return "", fmt.Errorf("%w: Gemini API returned status %d", ErrTranscription, resp.StatusCode)
	}

	if decodeErr != nil {
		p.logger.Warn("failed to parse response", "body", preview(body))
		return "", fmt.Errorf("%w: decode response: %v", ErrTranscription, decodeErr)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		p.logger.Warn("no candidates returned", "body", preview(body))
		return "", fmt.Errorf("%w: response has no text candidate", ErrTranscription)
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	p.logger.Info("transcription received", "uri", uri, "length", len(text), "duration", time.Since(startTime))
	return text, nil
}
