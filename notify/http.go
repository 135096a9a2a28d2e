package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"lexflow/reminder"
)

// HTTPEmailSender posts messages to a provider relay endpoint.
type HTTPEmailSender struct {
	URL    string
	APIKey string
	Client *http.Client
}

func (s *HTTPEmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload := map[string]string{
		"to":        to,
		"subject":   subject,
		"html_body": htmlBody,
	}
	_, err := postJSON(ctx, s.client(), s.URL, s.APIKey, payload)
	if err != nil {
		return fmt.Errorf("notify: email provider: %w", err)
	}
	return nil
}

func (s *HTTPEmailSender) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// HTTPTextSender posts SMS or WhatsApp messages to a provider endpoint. The
// provider resolves tenant-scoped credentials from the tenant id.
type HTTPTextSender struct {
	URL    string
	APIKey string
	Kind   string // "sms" or "whatsapp"
	Client *http.Client
}

func (s *HTTPTextSender) Send(ctx context.Context, tenantID, to, text string) (reminder.TextResult, error) {
	payload := map[string]string{
		"kind":      s.Kind,
		"tenant_id": tenantID,
		"to":        to,
		"text":      text,
	}
	body, err := postJSON(ctx, s.client(), s.URL, s.APIKey, payload)
	if err != nil {
		return reminder.TextResult{}, fmt.Errorf("notify: %s provider: %w", s.Kind, err)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &resp)
	}
	return reminder.TextResult{ProviderStatus: resp.Status}, nil
}

func (s *HTTPTextSender) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	return body, nil
}
