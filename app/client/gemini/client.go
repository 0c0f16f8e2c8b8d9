package gemini

import (
	"context"
	"fmt"
	"meetassist/app/config"

	"github.com/samber/do"
	"google.golang.org/genai"
)

type Client struct {
	cfg   *config.Config
	genai *genai.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		cfg:   cfg,
		genai: client,
	}, nil
}
