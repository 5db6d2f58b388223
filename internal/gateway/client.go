package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every outbound gateway call.
const DefaultTimeout = 30 * time.Second

const maxErrorBodyBytes = 4 * 1024

// TextMessage is the body of POST /api/sendText.
type TextMessage struct {
	ChatID                 string `json:"chatId"`
	Text                   string `json:"text"`
	LinkPreview            bool   `json:"linkPreview"`
	LinkPreviewHighQuality bool   `json:"linkPreviewHighQuality"`
	Session                string `json:"session"`
}

// File describes an attachment fetched by the gateway from URL.
type File struct {
	Mimetype string `json:"mimetype"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// FileMessage is the body of POST /api/sendImage, /api/sendVideo and /api/sendFile.
type FileMessage struct {
	ChatID  string  `json:"chatId"`
	File    File    `json:"file"`
	ReplyTo *string `json:"reply_to"`
	Caption string  `json:"caption"`
	Session string  `json:"session"`
}

// Result is the delivery outcome of one gateway call.
type Result struct {
	Success    bool
	StatusCode int
	Detail     string
}

// StatusError is returned when the gateway answers with a non-success status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("gateway %s returned status %d", e.Endpoint, e.StatusCode)
	if hint := statusHint(e.StatusCode); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

func statusHint(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "endpoint not found"
	case code == http.StatusUnauthorized:
		return "unauthorized"
	case code == http.StatusForbidden:
		return "forbidden"
	case code >= http.StatusInternalServerError:
		return "gateway server error"
	}
	return ""
}

// Client posts messages to gateway servers. It holds no per-server state.
type Client struct {
	http *http.Client
	log  zerolog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientLogger attaches a logger.
func WithClientLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient builds a client whose calls time out after timeout (DefaultTimeout when zero).
func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http: &http.Client{Timeout: timeout},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendText posts a text message. Any 2xx status is a success.
func (c *Client) SendText(ctx context.Context, endpoint string, msg TextMessage) (Result, error) {
	return c.post(ctx, endpoint, msg, func(code int) bool {
		return code >= 200 && code < 300
	})
}

// SendFile posts an attachment. Only 201 Created is a success.
func (c *Client) SendFile(ctx context.Context, endpoint string, msg FileMessage) (Result, error) {
	return c.post(ctx, endpoint, msg, func(code int) bool {
		return code == http.StatusCreated
	})
}

func (c *Client) post(ctx context.Context, endpoint string, body any, ok func(int) bool) (Result, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Result{}, errors.Wrap(err, "marshal gateway request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return Result{}, errors.Wrap(err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Detail: "no response from gateway"}, errors.Wrapf(err, "post %s", endpoint)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if !ok(resp.StatusCode) {
		serr := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(respBody)}
		c.log.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("body", serr.Body).
			Msg("gateway rejected message")
		return Result{StatusCode: resp.StatusCode, Detail: serr.Error()}, serr
	}
	return Result{Success: true, StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}, nil
}
