// Package buffer implements the platform adapter against a Buffer-style
// publishing API: one profile per social platform, updates posted through
// the profile, interactions fetched and replied to by id.
package buffer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"socialflow/internal/domain"
	"socialflow/internal/platform"
)

type Config struct {
	Platform    string
	BaseURL     string
	ProfileID   string
	AccessToken string
	Timeout     time.Duration
}

type Adapter struct {
	httpClient *http.Client
	baseURL    string
	profileID  string
	token      string
	platform   string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		profileID: cfg.ProfileID,
		token:     cfg.AccessToken,
		platform:  cfg.Platform,
		logger:    logger.With("platform", cfg.Platform),
	}
}

func (s *Adapter) Publish(ctx context.Context, item *domain.ContentItem) (string, error) {
	body := createUpdateRequest{
		Profile: s.profileID,
		Text:    item.Body,
		Now:     true,
	}

	var resp createUpdateResponse
	if err := s.do(ctx, http.MethodPost, "/updates", body, &resp); err != nil {
		return "", err
	}

	s.logger.Debug("published update", "content_id", item.ID, "native_id", resp.ID)
	return resp.ID, nil
}

func (s *Adapter) FetchRecentEvents(ctx context.Context, since time.Time) ([]domain.EngagementEvent, error) {
	path := fmt.Sprintf("/profiles/%s/interactions?since=%d",
		url.PathEscape(s.profileID), since.Unix())

	var resp interactionsResponse
	if err := s.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	s.logger.Debug("fetched interactions", "count", len(resp.Interactions), "since", since)
	return s.transform(resp.Interactions), nil
}

func (s *Adapter) SendResponse(ctx context.Context, nativeEventID, text string) error {
	path := fmt.Sprintf("/interactions/%s/reply", url.PathEscape(nativeEventID))
	return s.do(ctx, http.MethodPost, path, replyRequest{Text: text}, nil)
}

func (s *Adapter) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return platform.Permanent("marshal request: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return platform.Permanent("create request: %v", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Network-level failures (timeouts, refused connections) are
		// retryable.
		return &platform.TransientError{Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return platform.Transient("decode response: %v", err)
		}
	}
	return nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy. Rate
// limits and server errors are transient; everything else in 4xx is a
// permanent validation or auth failure.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout:
		return platform.Transient("status %d", code)
	case code >= 500:
		return platform.Transient("status %d", code)
	default:
		return platform.Permanent("status %d", code)
	}
}
