// Package credentials keeps provider API keys in the integration_tokens table
// so operators can rotate them without a redeploy.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"brandmerch/internal/infra"
	"brandmerch/internal/sqlinline"
)

const (
	ProviderGemini = "gemini"
	ProviderBrand  = "brand"
	ProviderResend = "resend"
	ProviderOpenAI = "openai"
)

// Providers lists the names accepted by Set.
var Providers = []string{ProviderGemini, ProviderBrand, ProviderResend, ProviderOpenAI}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGemini)
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the stored key and falls back to the environment value.
func (s *Store) Resolve(ctx context.Context, provider, fallback string) string {
	if s == nil {
		return fallback
	}
	token, err := s.Token(ctx, provider)
	if err != nil || token == "" {
		return fallback
	}
	return token
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	return s.Set(ctx, ProviderGemini, key)
}

// Set stores key for one of the known providers.
func (s *Store) Set(ctx context.Context, provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !known(provider) {
		return fmt.Errorf("unknown provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	return s.upsert(ctx, provider, key, nil)
}

// Clear removes the stored key so Resolve falls back to the environment.
func (s *Store) Clear(ctx context.Context, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !known(provider) {
		return fmt.Errorf("unknown provider %q", provider)
	}
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	return err
}

func known(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
