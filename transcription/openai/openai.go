// Package openai transcribes chunks with the hosted
// /audio/transcriptions endpoint, asking for srt or vtt output directly.
package openai

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kbukum/chunkscribe/httpclient"
	"github.com/kbukum/chunkscribe/provider"
	"github.com/kbukum/chunkscribe/transcription"
)

// ProviderName is the registry key.
const ProviderName = "openai"

// Provider implements transcription.Provider.
type Provider struct {
	cfg    transcription.OpenAIConfig
	client *httpclient.Client
}

// NewProvider creates the backend. cfg must already have defaults applied.
func NewProvider(cfg transcription.Config) (*Provider, error) {
	client, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.Timeout,
		Auth:    httpclient.BearerAuth(cfg.OpenAI.APIKey),
	})
	if err != nil {
		return nil, err
	}
	return &Provider{cfg: cfg.OpenAI, client: client}, nil
}

// Factory builds Provider instances for the registry.
func Factory() provider.Factory[transcription.Config, transcription.Provider] {
	return func(cfg transcription.Config) (transcription.Provider, error) {
		return NewProvider(cfg)
	}
}

// Register adds the backend to reg.
func Register(reg *provider.Registry[transcription.Config, transcription.Provider]) {
	reg.RegisterFactory(ProviderName, Factory())
}

func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether an API key is configured. The hosted API has
// no unauthenticated health endpoint worth a round trip per run.
func (p *Provider) IsAvailable(context.Context) bool {
	return p.cfg.APIKey != ""
}

// Transcribe uploads the chunk and returns the caption document verbatim.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	file, err := httpclient.FileFromPath("file", req.AudioPath, audioContentType(req.AudioPath))
	if err != nil {
		return nil, err
	}

	fields := map[string]string{
		"model":           p.cfg.Model,
		"response_format": string(req.Format),
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if req.Prompt != "" {
		fields["prompt"] = req.Prompt
	}

	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/audio/transcriptions",
		Body:   &httpclient.MultipartBody{Fields: fields, Files: []httpclient.FileField{file}},
	})
	if err != nil {
		return nil, err
	}

	return &transcription.Response{
		Document: string(resp.Body),
		Provider: ProviderName,
		Language: req.Language,
	}, nil
}

func audioContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

var _ transcription.Provider = (*Provider)(nil)
