package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrServiceBusy marks a transient recognizer failure (HTTP 503). Callers may
// retry after a delay. Every other non-2xx status, and a 200 whose body does
// not carry a result, is fatal: the service itself is broken, not this image.
var ErrServiceBusy = errors.New("captcha service busy")

type Credentials struct {
	UserID string
	APIKey string
}

// Client calls the external text-recognition service with a base64 challenge
// image and returns the recognized code.
type Client struct {
	hc      *http.Client
	url     string
	creds   Credentials
	tag     string
	codeLen int
}

func New(url string, creds Credentials, tag string, codeLen int) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 60 * time.Second},
		url:     url,
		creds:   creds,
		tag:     tag,
		codeLen: codeLen,
	}
}

type resolveRequest struct {
	UserID  string `json:"userid"`
	APIKey  string `json:"apikey"`
	Data    string `json:"data"`
	Tag     string `json:"tag"`
	Numeric bool   `json:"numeric"`
	Mode    string `json:"mode"`
	LenStr  int    `json:"len_str"`
}

type resolveResponse struct {
	Result string `json:"result"`
}

func (c *Client) Resolve(ctx context.Context, imageBase64 string) (string, error) {
	payload, err := json.Marshal(resolveRequest{
		UserID:  c.creds.UserID,
		APIKey:  c.creds.APIKey,
		Data:    imageBase64,
		Tag:     c.tag,
		Numeric: true,
		Mode:    "human",
		LenStr:  c.codeLen,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("content-type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("captcha request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("captcha response: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusServiceUnavailable:
		return "", ErrServiceBusy
	case res.StatusCode != http.StatusOK:
		return "", fmt.Errorf("captcha service error (status=%d)", res.StatusCode)
	}

	var r resolveResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("captcha service returned malformed body: %w", err)
	}
	if r.Result == "" {
		return "", fmt.Errorf("captcha service returned empty result")
	}
	return r.Result, nil
}
