package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPMobilePush delivers to mobile devices through the push provider's
// HTTP API. No push SDK exists in the dependency set, so this is a thin
// net/http client behind the MobilePushSender interface.
type HTTPMobilePush struct {
	client *http.Client
	url    string
	apiKey string
}

func NewHTTPMobilePush(url, apiKey string) *HTTPMobilePush {
	return &HTTPMobilePush{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		apiKey: apiKey,
	}
}

func (p *HTTPMobilePush) Send(ctx context.Context, token string, msg PushMessage) error {
	payload := map[string]interface{}{
		"to":                  token,
		"title":               msg.Title,
		"body":                msg.Body,
		"data":                msg.Data,
		"priority":            msg.Priority,
		"require_interaction": msg.RequireInteraction,
	}
	return p.post(ctx, p.url, payload)
}

func (p *HTTPMobilePush) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return classifyStatus(resp.StatusCode)
}

// HTTPBrowserPush delivers web-push messages through the relay that handles
// VAPID signing and payload encryption for registered endpoints.
type HTTPBrowserPush struct {
	client *http.Client
	url    string
}

func NewHTTPBrowserPush(url string) *HTTPBrowserPush {
	return &HTTPBrowserPush{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

func (p *HTTPBrowserPush) Send(ctx context.Context, target BrowserTarget, msg PushMessage) error {
	payload := map[string]interface{}{
		"subscription": map[string]interface{}{
			"endpoint": target.Endpoint,
			"keys": map[string]string{
				"p256dh": target.P256dhKey,
				"auth":   target.AuthKey,
			},
		},
		"notification": msg,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return classifyStatus(resp.StatusCode)
}

func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return ErrInvalidTarget
	default:
		return fmt.Errorf("push provider returned status %d", code)
	}
}
