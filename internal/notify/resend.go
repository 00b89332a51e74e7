package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brandmerch/internal/infra"
	"brandmerch/internal/providers"
)

const defaultResendURL = "https://api.resend.com"

type ResendOptions struct {
	APIKey     string
	From       string
	BaseURL    string
	HTTPClient *http.Client
}

// ResendSender delivers email through the Resend HTTP API.
type ResendSender struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
}

func NewResendSender(opts ResendOptions) *ResendSender {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultResendURL
	}
	return &ResendSender{apiKey: opts.APIKey, from: opts.From, baseURL: base, client: client}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (s *ResendSender) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(resendRequest{From: s.from, To: []string{to}, Subject: subject, HTML: html})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &providers.StatusError{Provider: "resend", Code: resp.StatusCode, Body: string(data)}
	}
	return nil
}

// LogSender only logs outgoing email. It is used when no email API key is set.
type LogSender struct {
	Logger *infra.Logger
}

func (s LogSender) Send(ctx context.Context, to, subject, html string) error {
	if s.Logger != nil {
		s.Logger.Info().Str("to", maskEmail(to)).Str("subject", subject).Int("bytes", len(html)).Msg("notify: email not sent, no provider configured")
	}
	return nil
}
