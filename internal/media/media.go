// Package media turns voice notes and photos into text the reply pipeline
// can reason about.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bobberdolle1/Puppeteer/llm"
)

// Transcriber sends audio to a Whisper-compatible server and returns the
// recognized text.
type Transcriber struct {
	baseURL string
	model   string
	http    *http.Client
}

func NewTranscriber(baseURL, model string) *Transcriber {
	if strings.TrimSpace(model) == "" {
		model = "whisper-1"
	}
	return &Transcriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("transcribe: empty audio")
	}
	if strings.TrimSpace(filename) == "" {
		filename = "voice.ogg"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", t.model); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	url := t.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcribe http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out transcriptionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

// VisionClient produces a textual description of an image.
type VisionClient interface {
	Describe(ctx context.Context, model, prompt string, imagesBase64 []string, opts llm.GenerateOptions) (string, error)
}

// Describer wraps a vision model behind a fixed prompt.
type Describer struct {
	client VisionClient
	model  string
}

func NewDescriber(client VisionClient, model string) *Describer {
	return &Describer{client: client, model: model}
}

const describePrompt = "Describe this image briefly and factually in one or two sentences."

func (d *Describer) Describe(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("describe: empty image")
	}
	encoded := base64.StdEncoding.EncodeToString(image)
	text, err := d.client.Describe(ctx, d.model, describePrompt, []string{encoded}, llm.GenerateOptions{})
	if err != nil {
		return "", fmt.Errorf("describe: %w", err)
	}
	return strings.TrimSpace(text), nil
}
