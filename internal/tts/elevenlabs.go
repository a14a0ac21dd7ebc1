package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabsClient streams PCM_48000 speech over the HTTP streaming endpoint.
type ElevenLabsClient struct {
	APIKey     string
	VoiceID    string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	log        *zap.Logger
}

func NewElevenLabsClient(apiKey, voiceID string, log *zap.Logger) *ElevenLabsClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &ElevenLabsClient{
		APIKey:     apiKey,
		VoiceID:    voiceID,
		Model:      "eleven_flash_v2_5",
		BaseURL:    elevenLabsBaseURL,
		HTTPClient: &http.Client{Timeout: 0},
		log:        log.Named("elevenlabs_tts"),
	}
}

func (e *ElevenLabsClient) StreamPCM48k(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 4096)
	errCh := make(chan error, 1)
	go func() {
		defer close(pcmCh)
		defer close(errCh)
		if e.APIKey == "" || e.VoiceID == "" {
			errCh <- fmt.Errorf("elevenlabs: api key or voice id missing")
			return
		}
		if text == "" {
			return
		}
		if err := e.httpStream(ctx, text, pcmCh); err != nil {
			errCh <- err
		}
	}()
	return pcmCh, errCh
}

func (e *ElevenLabsClient) httpStream(ctx context.Context, text string, pcmCh chan<- []byte) error {
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return fmt.Errorf("elevenlabs base url: %w", err)
	}
	u.Path = "/v1/text-to-speech/" + e.VoiceID + "/stream"
	q := u.Query()
	q.Set("model_id", e.Model)
	q.Set("output_format", "pcm_48000")
	// lower streaming latency target (0..4 where lower is lower latency, may trade quality)
	q.Set("optimize_streaming_latency", "2")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": e.Model,
		"text":     text,
		"voice_settings": map[string]any{
			"stability":         0.4,
			"similarity_boost":  0.7,
			"style":             0.0,
			"use_speaker_boost": true,
		},
		"generation_config": map[string]any{
			"chunk_length_schedule": []int{80, 120, 160, 200},
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs http stream error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("elevenlabs http status=%d body=%s", resp.StatusCode, string(b))
	}

	bufChunk := make([]byte, 4096)
	first := true
	for {
		n, rerr := resp.Body.Read(bufChunk)
		if n > 0 {
			if first {
				e.log.Debug("receiving audio stream", zap.Int("first_chunk_bytes", n))
				first = false
			}
			out := make([]byte, n)
			copy(out, bufChunk[:n])
			select {
			case pcmCh <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return fmt.Errorf("elevenlabs http read error: %w", rerr)
		}
	}
}
