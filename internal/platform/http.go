package platform

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
	// Bridge talks to a marketplace integration service over HTTP. One
	// bridge instance serves a single platform; requests are posted to
	// <base>/<platform>/<action>
	Bridge struct {
		httpClient *http.Client
		baseURL    string
		platform   api.Platform
	}

	bridgeResponse struct {
		Success bool            `json:"success"`
		Error   string          `json:"error,omitempty"`
		Output  json.RawMessage `json:"output,omitempty"`
	}
)

var (
	ErrBridgeError = errors.New("platform bridge returned an error")

	_ Adapter = (*Bridge)(nil)
)

// NewBridge creates an HTTP adapter for one platform
func NewBridge(
	baseURL string, p api.Platform, timeout time.Duration,
) *Bridge {
	return &Bridge{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		platform: p,
	}
}

func (b *Bridge) Platform() api.Platform {
	return b.platform
}

func (b *Bridge) PostListing(
	ctx context.Context, d *Draft,
) (*Published, error) {
	var res Published
	err := b.call(ctx, "post_listing", d, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *Bridge) EndListing(ctx context.Context, listingID string) error {
	return b.call(ctx, "end_listing", api.Args{
		"listing_id": listingID,
	}, nil)
}

func (b *Bridge) MarkSold(ctx context.Context, listingID string) error {
	return b.call(ctx, "mark_sold", api.Args{
		"listing_id": listingID,
	}, nil)
}

func (b *Bridge) GetOffers(
	ctx context.Context, listingID string,
) ([]*Offer, error) {
	var res []*Offer
	err := b.call(ctx, "get_offers", api.Args{
		"listing_id": listingID,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Bridge) AcceptOffer(ctx context.Context, offerID string) error {
	return b.call(ctx, "accept_offer", api.Args{
		"offer_id": offerID,
	}, nil)
}

func (b *Bridge) DeclineOffer(ctx context.Context, offerID string) error {
	return b.call(ctx, "decline_offer", api.Args{
		"offer_id": offerID,
	}, nil)
}

func (b *Bridge) CounterOffer(
	ctx context.Context, offerID string, amount float64,
) error {
	return b.call(ctx, "counter_offer", api.Args{
		"offer_id": offerID,
		"amount":   amount,
	}, nil)
}

func (b *Bridge) GetMessages(
	ctx context.Context, listingID string,
) ([]*Message, error) {
	var res []*Message
	err := b.call(ctx, "get_messages", api.Args{
		"listing_id": listingID,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Bridge) SendMessage(
	ctx context.Context, listingID, buyer, content string,
) error {
	return b.call(ctx, "send_message", api.Args{
		"listing_id": listingID,
		"buyer":      buyer,
		"content":    content,
	}, nil)
}

func (b *Bridge) SoldComparables(
	ctx context.Context, query string, limit int,
) ([]*Comparable, error) {
	var res []*Comparable
	err := b.call(ctx, "sold_comparables", api.Args{
		"query": query,
		"limit": limit,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Bridge) call(
	ctx context.Context, action string, input any, output any,
) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}

	url := fmt.Sprintf("%s/%s/%s", b.baseURL, b.platform, action)
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewBuffer(body),
	)
	if err != nil {
		return err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Flipflow-Engine/1.0")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("Platform bridge request failed",
			log.Platform(b.platform),
			slog.String("action", action),
			log.Error(err))
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Platform bridge HTTP error",
			log.Platform(b.platform),
			slog.String("action", action),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)))
		return fmt.Errorf("%w: HTTP %d", ErrBridgeError, resp.StatusCode)
	}

	var res bridgeResponse
	if err := json.Unmarshal(respBody, &res); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	if !res.Success {
		if res.Error != "" {
			return fmt.Errorf("%w: %s", ErrBridgeError, res.Error)
		}
		return ErrBridgeError
	}

	if output != nil && len(res.Output) > 0 {
		if err := json.Unmarshal(res.Output, output); err != nil {
			return fmt.Errorf("decode %s output: %w", action, err)
		}
	}
	return nil
}
