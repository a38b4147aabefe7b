package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bobberdolle1/Puppeteer/llm"
)

// Client talks to an Ollama server over its HTTP JSON API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 180 * time.Second},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (c *Client) Generate(ctx context.Context, model, prompt string, opts llm.GenerateOptions) (llm.Result, error) {
	start := time.Now()
	body := generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}
	var out generateResponse
	if err := c.postJSON(ctx, "/api/generate", body, &out); err != nil {
		return llm.Result{}, err
	}
	if strings.TrimSpace(out.Response) == "" {
		return llm.Result{}, fmt.Errorf("ollama: empty response")
	}
	return llm.Result{Text: out.Response, Duration: time.Since(start)}, nil
}

// Describe runs a multimodal generate with base64-encoded images attached.
func (c *Client) Describe(ctx context.Context, model, prompt string, imagesBase64 []string, opts llm.GenerateOptions) (string, error) {
	body := generateRequest{
		Model:  model,
		Prompt: prompt,
		Images: imagesBase64,
		Stream: false,
		Options: generateOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}
	var out generateResponse
	if err := c.postJSON(ctx, "/api/generate", body, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func (c *Client) Embed(ctx context.Context, model, text string) ([]float64, error) {
	var out embeddingResponse
	if err := c.postJSON(ctx, "/api/embeddings", embeddingRequest{Model: model, Prompt: text}, &out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &llm.BackendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var out tagsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return wrapTransportErr(err)
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return wrapTransportErr(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &llm.BackendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return json.Unmarshal(raw, out)
}

func wrapTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", llm.ErrTimeout, err)
	}
	return fmt.Errorf("ollama: %w", err)
}
