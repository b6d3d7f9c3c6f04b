package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
)

const (
	HeaderSignature = "X-Checkout-Signature"
	HeaderEvent     = "X-Checkout-Event"
	HeaderEventID   = "X-Checkout-Event-Id"
	HeaderTimestamp = "X-Checkout-Timestamp"
)

// WebhookSource lists a seller's active downstream URLs.
type WebhookSource interface {
	SellerWebhooks(ctx context.Context, sellerID string) ([]*models.SellerWebhook, error)
}

// SellerWebhookForwarder posts events to every active seller webhook,
// signed with the webhook's secret.
type SellerWebhookForwarder struct {
	source WebhookSource
	http   *http.Client
	now    func() time.Time
}

func NewSellerWebhookForwarder(source WebhookSource, timeout time.Duration) *SellerWebhookForwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SellerWebhookForwarder{source: source, http: &http.Client{Timeout: timeout}, now: time.Now}
}

func (f *SellerWebhookForwarder) Name() string { return "seller_webhook" }

func (f *SellerWebhookForwarder) Deliver(ctx context.Context, e *Event) error {
	hooks, err := f.source.SellerWebhooks(ctx, e.SellerID)
	if err != nil {
		return err
	}
	if len(hooks) == 0 {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ts := strconv.FormatInt(f.now().Unix(), 10)

	var errs []error
	for _, h := range hooks {
		header := http.Header{}
		header.Set(HeaderEvent, string(e.Type))
		header.Set(HeaderEventID, e.ID)
		header.Set(HeaderTimestamp, ts)
		if h.Secret != "" {
			header.Set(HeaderSignature, "t="+ts+",v1="+gateway.SignHMAC(h.Secret, []byte(ts+"."+string(body))))
		}
		if err := postJSON(ctx, f.http, h.URL, body, header); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.URL, err))
		}
	}
	return errors.Join(errs...)
}

// AnalyticsForwarder sends events with their attribution to one collector.
// An empty URL disables it.
type AnalyticsForwarder struct {
	url   string
	token string
	http  *http.Client
}

func NewAnalyticsForwarder(url, token string, timeout time.Duration) *AnalyticsForwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AnalyticsForwarder{url: url, token: token, http: &http.Client{Timeout: timeout}}
}

func (f *AnalyticsForwarder) Name() string { return "analytics" }

func (f *AnalyticsForwarder) Deliver(ctx context.Context, e *Event) error {
	if f.url == "" {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	header := http.Header{}
	header.Set(HeaderEvent, string(e.Type))
	header.Set(HeaderEventID, e.ID)
	if f.token != "" {
		header.Set("Authorization", "Bearer "+f.token)
	}
	return postJSON(ctx, f.http, f.url, body, header)
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
