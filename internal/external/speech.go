package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Speech turns text into audio.
type Speech interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// DefaultVoice is the ElevenLabs voice used when none is configured.
const DefaultVoice = "21m00Tcm4TlvDq8ikWAM"

// ElevenLabs calls the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	baseURL string
	apiKey  string
	voice   string
	client  *http.Client
}

// NewElevenLabs creates an ElevenLabs client.
func NewElevenLabs(apiKey, voice string, timeout time.Duration) *ElevenLabs {
	if voice == "" {
		voice = DefaultVoice
	}
	return &ElevenLabs{
		baseURL: "https://api.elevenlabs.io",
		apiKey:  apiKey,
		voice:   voice,
		client:  newHTTPClient(timeout),
	}
}

// WithBaseURL points the client at another endpoint. Used by tests.
func (e *ElevenLabs) WithBaseURL(u string) *ElevenLabs {
	e.baseURL = strings.TrimRight(u, "/")
	return e
}

// Synthesize returns the audio bytes and their content type.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if e.apiKey == "" {
		return nil, "", ErrNotConfigured
	}
	payload, err := json.Marshal(map[string]string{"text": text, "model_id": "eleven_multilingual_v2"})
	if err != nil {
		return nil, "", fmt.Errorf("encode request: %w", err)
	}
	endpoint := e.baseURL + "/v1/text-to-speech/" + url.PathEscape(e.voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	audio, err := send(e.client, req)
	if err != nil {
		return nil, "", err
	}
	return audio, "audio/mpeg", nil
}
