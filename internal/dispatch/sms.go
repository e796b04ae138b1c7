package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSMS sends text messages through the SMS gateway's HTTP API.
type HTTPSMS struct {
	client *http.Client
	url    string
	apiKey string
	sender string
}

func NewHTTPSMS(url, apiKey, sender string) *HTTPSMS {
	return &HTTPSMS{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		apiKey: apiKey,
		sender: sender,
	}
}

func (s *HTTPSMS) Send(ctx context.Context, phone, text string) error {
	payload := map[string]string{
		"to":      phone,
		"from":    s.sender,
		"message": text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
