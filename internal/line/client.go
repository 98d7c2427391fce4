package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.line.me"

	ReplyTimeout   = 10 * time.Second
	ProfileTimeout = 6 * time.Second

	// maxResponseBytes bounds how much of a platform response is read.
	maxResponseBytes = 1 << 20
)

// Config holds what is needed to call the Messaging API.
type Config struct {
	// BaseURL defaults to https://api.line.me. Tests point it at httptest.
	BaseURL string

	AccessToken string

	// HTTPClient defaults to a client with no overall timeout; each call
	// applies its own deadline.
	HTTPClient *http.Client
}

// Client calls the reply and profile endpoints of the Messaging API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: base, token: cfg.AccessToken, httpClient: hc}
}

// APIError is a non-2xx response from the platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("line: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("line: HTTP %d: %s", e.StatusCode, e.Message)
}

type replyRequest struct {
	ReplyToken string         `json:"replyToken"`
	Messages   []ReplyMessage `json:"messages"`
}

// Reply posts messages against a reply token. It is not retried; reply
// tokens are single-use.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...ReplyMessage) error {
	if replyToken == "" {
		return fmt.Errorf("line: empty reply token")
	}
	if len(messages) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, ReplyTimeout)
	defer cancel()

	_, err := c.do(ctx, http.MethodPost, "/v2/bot/message/reply", replyRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	return err
}

type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

// ProfilePath returns the profile endpoint for a source, or
// ErrMalformedSource when the ids it needs are missing.
func ProfilePath(src Source) (string, error) {
	if src.UserID == "" {
		return "", ErrMalformedSource
	}
	user := url.PathEscape(src.UserID)
	switch src.Type {
	case SourceTypeUser:
		return "/v2/bot/profile/" + user, nil
	case SourceTypeGroup:
		if src.GroupID == "" {
			return "", ErrMalformedSource
		}
		return "/v2/bot/group/" + url.PathEscape(src.GroupID) + "/member/" + user, nil
	case SourceTypeRoom:
		if src.RoomID == "" {
			return "", ErrMalformedSource
		}
		return "/v2/bot/room/" + url.PathEscape(src.RoomID) + "/member/" + user, nil
	default:
		return "", ErrMalformedSource
	}
}

// Profile fetches the display profile of the sender of src.
func (c *Client) Profile(ctx context.Context, src Source) (Profile, error) {
	path, err := ProfilePath(src)
	if err != nil {
		return Profile{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, ProfileTimeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return Profile{}, fmt.Errorf("line: decode profile: %w", err)
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("line: encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("line: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("line: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("line: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &msg) == nil {
			apiErr.Message = msg.Message
		}
		return nil, apiErr
	}
	return body, nil
}
