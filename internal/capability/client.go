// Package capability abstracts the decision logic behind each agent
// step. An agent invokes a named capability with its current fields and
// receives an opaque JSON result or a failure; the engine never sees the
// capability's internals. HTTP 4xx responses are permanent failures,
// everything else is transient and eligible for retry.
package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

type (
	// Name identifies a capability
	Name string

	// Client invokes capabilities by name
	Client interface {
		Invoke(
			ctx context.Context, name Name, input api.Args,
		) (json.RawMessage, error)
	}

	// HTTPClient invokes capabilities over HTTP against a base URL,
	// posting to <base>/<name>
	HTTPClient struct {
		httpClient *http.Client
		baseURL    string
	}

	// Failure is a capability invocation error carrying a retry hint
	Failure struct {
		Name      Name
		Err       error
		Retryable bool
	}

	request struct {
		Input api.Args `json:"input"`
	}

	response struct {
		Success bool            `json:"success"`
		Error   string          `json:"error,omitempty"`
		Output  json.RawMessage `json:"output,omitempty"`
	}
)

const (
	VisionProfile Name = "vision_profile"
	TextProfile   Name = "text_profile"
	ListingCopy   Name = "listing_copy"
	AutoReply     Name = "auto_reply"
	OfferReview   Name = "offer_review"
)

var (
	ErrUnsuccessful = errors.New("capability returned success=false")
	ErrHTTPError    = errors.New("capability returned HTTP error")
)

var _ Client = (*HTTPClient)(nil)

func (f *Failure) Error() string {
	return fmt.Sprintf("capability %s: %v", f.Name, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsRetryable reports whether an invocation error is worth retrying.
// Unknown errors default to retryable
func IsRetryable(err error) bool {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Retryable
	}
	return true
}

// NewHTTPClient creates a capability client against the given base URL
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

func (c *HTTPClient) Invoke(
	ctx context.Context, name Name, input api.Args,
) (json.RawMessage, error) {
	body, err := json.Marshal(request{Input: input})
	if err != nil {
		return nil, &Failure{Name: name, Err: err}
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, name)
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, &Failure{Name: name, Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Flipflow-Engine/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		slog.Error("Capability request failed",
			slog.String("capability", string(name)),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, &Failure{Name: name, Err: err, Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Failure{Name: name, Err: err, Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Capability HTTP error",
			slog.String("capability", string(name)),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)))
		return nil, &Failure{
			Name: name,
			Err: fmt.Errorf("%w: HTTP %d",
				ErrHTTPError, resp.StatusCode),
			Retryable: resp.StatusCode < 400 || resp.StatusCode >= 500,
		}
	}

	var res response
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, &Failure{Name: name, Err: err, Retryable: true}
	}

	if !res.Success {
		err := ErrUnsuccessful
		if res.Error != "" {
			err = fmt.Errorf("%w: %s", ErrUnsuccessful, res.Error)
		}
		return nil, &Failure{Name: name, Err: err}
	}

	return res.Output, nil
}
