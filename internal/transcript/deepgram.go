package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	prerecorded "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/listen"

	"github.com/chadiek/interview-coach/internal/device"
)

const transcribeTimeout = 30 * time.Second

// DeepgramClient transcribes finalized recordings with the pre-recorded
// listen endpoint. Host is empty for the hosted API.
type DeepgramClient struct {
	APIKey string
	Model  string
	Host   string
}

func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	if model == "" {
		model = "nova-2"
	}
	return &DeepgramClient{APIKey: apiKey, Model: model}
}

func (c *DeepgramClient) Transcribe(ctx context.Context, blob device.AudioBlob, opts Options) (Result, error) {
	if blob.Empty() {
		return Result{}, nil
	}
	if c.APIKey == "" {
		return Result{}, errors.New("deepgram api key missing")
	}
	rest := listen.NewREST(c.APIKey, &interfaces.ClientOptions{Host: c.Host})
	if rest == nil {
		return Result{}, errors.New("deepgram client options rejected")
	}

	lang := opts.Language
	if lang == "" {
		lang = "en-US"
	}
	req := &interfaces.PreRecordedTranscriptionOptions{
		Model:       c.Model,
		Language:    lang,
		SmartFormat: true,
		Punctuate:   true,
		Paragraphs:  true,
		Utterances:  true,
		Numerals:    true,
	}
	if opts.SampleRate > 0 && !strings.Contains(blob.ContentType, "wav") {
		req.SampleRate = opts.SampleRate
	}

	ct := blob.ContentType
	if ct == "" {
		ct = "audio/wav"
	}
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()
	ctx = interfaces.WithCustomHeaders(ctx, http.Header{"Content-Type": []string{ct}})

	resp, err := prerecorded.New(rest).FromStream(ctx, bytes.NewReader(blob.Data), req)
	if err != nil {
		var se *interfaces.StatusError
		if errors.As(err, &se) && se.Resp != nil {
			return Result{}, fmt.Errorf("deepgram error: status=%d: %w", se.Resp.StatusCode, err)
		}
		return Result{}, fmt.Errorf("deepgram: %w", err)
	}
	if resp.Results == nil {
		return Result{}, errors.New("deepgram: missing results")
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return Result{}, nil
	}
	alt := resp.Results.Channels[0].Alternatives[0]
	res := Result{
		Transcript: strings.TrimSpace(alt.Transcript),
		Confidence: alt.Confidence,
	}
	for _, w := range alt.Words {
		res.Words = append(res.Words, Word{Word: w.Word, Start: w.Start, End: w.End, Confidence: w.Confidence})
	}
	return res, nil
}
