// Package remote implements the lm adapter interfaces over HTTP. The model
// runs out of process (any server exposing the small JSON protocol below);
// this client only moves token ids and logits across the wire.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Client talks to a model server. It implements lm.Tokenizer, lm.Causal and
// lm.Masked; the zero value is not usable, construct it with Dial.
type Client struct {
	baseURL string
	http    *http.Client

	vocabSize int
	maskID    int
}

type infoResponse struct {
	Model     string `json:"model"`
	VocabSize int    `json:"vocab_size"`
	MaskID    *int   `json:"mask_id,omitempty"`
}

type encodeRequest struct {
	Text string `json:"text"`
}

type encodeResponse struct {
	IDs []int `json:"ids"`
}

type decodeRequest struct {
	IDs []int `json:"ids"`
}

type decodeResponse struct {
	Text string `json:"text"`
}

type logitsRequest struct {
	IDs []int `json:"ids"`
}

type maskedLogitsRequest struct {
	IDs      []int `json:"ids"`
	Position int   `json:"position"`
}

type logitsResponse struct {
	Logits []float64 `json:"logits"`
}

// Dial fetches the server's /v1/info document and returns a ready client.
func Dial(ctx context.Context, baseURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		maskID:  -1,
	}
	var info infoResponse
	if err := c.do(ctx, http.MethodGet, "/v1/info", nil, &info); err != nil {
		return nil, fmt.Errorf("remote: fetch model info: %w", err)
	}
	if info.VocabSize <= 0 {
		return nil, fmt.Errorf("remote: server reported vocab_size=%d", info.VocabSize)
	}
	c.vocabSize = info.VocabSize
	if info.MaskID != nil {
		c.maskID = *info.MaskID
	}
	return c, nil
}

func (c *Client) VocabSize() int { return c.vocabSize }

// MaskID returns the server's mask token id, or -1 when the served model has
// no masked head.
func (c *Client) MaskID() int { return c.maskID }

func (c *Client) Encode(text string) ([]int, error) {
	var resp encodeResponse
	if err := c.do(context.Background(), http.MethodPost, "/v1/encode", encodeRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("remote: encode: %w", err)
	}
	return resp.IDs, nil
}

func (c *Client) Decode(ids []int) (string, error) {
	var resp decodeResponse
	if err := c.do(context.Background(), http.MethodPost, "/v1/decode", decodeRequest{IDs: ids}, &resp); err != nil {
		return "", fmt.Errorf("remote: decode: %w", err)
	}
	return resp.Text, nil
}

func (c *Client) NextLogits(ctx context.Context, ids []int) ([]float64, error) {
	var resp logitsResponse
	if err := c.do(ctx, http.MethodPost, "/v1/logits", logitsRequest{IDs: ids}, &resp); err != nil {
		return nil, fmt.Errorf("remote: next logits: %w", err)
	}
	if len(resp.Logits) != c.vocabSize {
		return nil, fmt.Errorf("remote: logits length %d, want vocab size %d", len(resp.Logits), c.vocabSize)
	}
	return resp.Logits, nil
}

func (c *Client) MaskedLogits(ctx context.Context, ids []int, pos int) ([]float64, error) {
	if pos < 0 || pos >= len(ids) {
		return nil, fmt.Errorf("remote: mask position %d out of range for %d tokens", pos, len(ids))
	}
	var resp logitsResponse
	req := maskedLogitsRequest{IDs: ids, Position: pos}
	if err := c.do(ctx, http.MethodPost, "/v1/masked_logits", req, &resp); err != nil {
		return nil, fmt.Errorf("remote: masked logits: %w", err)
	}
	if len(resp.Logits) != c.vocabSize {
		return nil, fmt.Errorf("remote: logits length %d, want vocab size %d", len(resp.Logits), c.vocabSize)
	}
	return resp.Logits, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
