// Package whisper transcribes chunks with a self-hosted faster-whisper
// HTTP sidecar. The sidecar returns JSON segments, which are rendered into
// the requested caption format.
package whisper

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kbukum/chunkscribe/caption"
	"github.com/kbukum/chunkscribe/httpclient"
	"github.com/kbukum/chunkscribe/provider"
	"github.com/kbukum/chunkscribe/transcription"
)

// ProviderName is the registry key.
const ProviderName = "whisper"

// Provider implements transcription.Provider against the sidecar.
type Provider struct {
	cfg    transcription.WhisperConfig
	client *httpclient.Client
}

// NewProvider creates the backend. cfg must already have defaults applied.
func NewProvider(cfg transcription.Config) (*Provider, error) {
	hc := httpclient.Config{
		BaseURL: cfg.Whisper.URL,
		Timeout: cfg.Timeout,
	}
	if cfg.Whisper.APIKey != "" {
		hc.Auth = httpclient.APIKeyAuth(cfg.Whisper.APIKey, "")
	}
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, err
	}
	return &Provider{cfg: cfg.Whisper, client: client}, nil
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

// IsAvailable checks the sidecar's /health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil && resp.IsSuccess()
}

type sidecarResponse struct {
	Text     string                  `json:"text"`
	Segments []transcription.Segment `json:"segments"`
	Language string                  `json:"language"`
}

// Transcribe uploads the chunk and renders the returned segments.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	file, err := httpclient.FileFromPath("audio", req.AudioPath, "")
	if err != nil {
		return nil, err
	}

	fields := map[string]string{"model": p.cfg.Model}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if p.cfg.Device != "" {
		fields["device"] = p.cfg.Device
	}
	if p.cfg.ComputeType != "" {
		fields["compute_type"] = p.cfg.ComputeType
	}

	var out sidecarResponse
	if _, err := p.client.DoJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body:   &httpclient.MultipartBody{Fields: fields, Files: []httpclient.FileField{file}},
	}, &out); err != nil {
		return nil, err
	}

	caps := transcription.SegmentsToCaptions(out.Segments)
	for i := range caps {
		caps[i].Text = strings.TrimSpace(caps[i].Text)
		if caps[i].EndMs < caps[i].StartMs {
			return nil, fmt.Errorf("whisper segment %d ends before it starts", i)
		}
	}

	return &transcription.Response{
		Document: caption.Render(req.Format, caps),
		Provider: ProviderName,
		Language: out.Language,
	}, nil
}

var _ transcription.Provider = (*Provider)(nil)
