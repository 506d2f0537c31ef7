package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	genai "google.golang.org/genai"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/ports"
	"github.com/pixelmend/pixelmend/internal/infrastructure/resilience"
)

const (
	defaultMaxImageBytes   = 10 << 20
	defaultGenerateTimeout = 60 * time.Second
)

type Config struct {
	APIKey          string
	TextModel       string
	ImageModel      string
	MaxImageBytes   int
	GenerateTimeout time.Duration
	RPS             float64
	Burst           int
}

func (c Config) normalize() Config {
	out := c
	if out.TextModel == "" {
		out.TextModel = "gemini-2.5-flash"
	}
	if out.ImageModel == "" {
		out.ImageModel = "gemini-2.5-flash-image-preview"
	}
	if out.MaxImageBytes <= 0 {
		out.MaxImageBytes = defaultMaxImageBytes
	}
	if out.GenerateTimeout <= 0 {
		out.GenerateTimeout = defaultGenerateTimeout
	}
	return out
}

// Client adapts the Gemini API to the ImageEditor port. Requests flow through
// an RPS limiter and a resilience guard; failures are mapped onto the domain
// taxonomy before they leave this package.
type Client struct {
	cli     *genai.Client
	cfg     Config
	limiter *rate.Limiter
	guard   *resilience.Guard
}

var _ ports.ImageEditor = (*Client)(nil)

func New(ctx context.Context, cfg Config, guard *resilience.Guard) (*Client, error) {
	cfg = cfg.normalize()
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{cli: cli, cfg: cfg, limiter: limiter, guard: guard}, nil
}

func (c *Client) AnalyzeImage(ctx context.Context, img []byte, pc domain.ProcessingContext) (string, error) {
	if err := c.checkSize(img); err != nil {
		return "", err
	}

	var text string
	err := c.call(ctx, "gemini.analyze", func(callCtx context.Context) error {
		resp, err := c.cli.Models.GenerateContent(callCtx, c.cfg.TextModel,
			imageContents(buildAnalysisPrompt(pc), img),
			&genai.GenerateContentConfig{},
		)
		if err != nil {
			return err
		}
		text = firstText(resp)
		if text == "" {
			return blockedOrEmpty(resp, "analyze")
		}
		return nil
	})
	if err != nil {
		return "", mapError("analyze image", err)
	}
	return text, nil
}

func (c *Client) GenerateImage(ctx context.Context, img []byte, instruction string) ([]byte, error) {
	if err := c.checkSize(img); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	var edited []byte
	err := c.call(ctx, "gemini.generate", func(callCtx context.Context) error {
		resp, err := c.cli.Models.GenerateContent(callCtx, c.cfg.ImageModel,
			imageContents(buildGenerationPrompt(instruction), img),
			&genai.GenerateContentConfig{
				ResponseModalities: []string{"IMAGE", "TEXT"},
			},
		)
		if err != nil {
			return err
		}
		edited = firstInlineImage(resp)
		if len(edited) == 0 {
			return blockedOrEmpty(resp, "generate")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
			return nil, domain.WrapError(domain.ErrNetwork, "generate image",
				fmt.Errorf("no response within %s", c.cfg.GenerateTimeout))
		}
		return nil, mapError("generate image", err)
	}
	return edited, nil
}

func (c *Client) SegmentImage(ctx context.Context, img []byte, pc domain.ProcessingContext) (*domain.SegmentationResult, error) {
	if err := c.checkSize(img); err != nil {
		return nil, err
	}
	started := time.Now()

	var raw string
	err := c.call(ctx, "gemini.segment", func(callCtx context.Context) error {
		resp, err := c.cli.Models.GenerateContent(callCtx, c.cfg.TextModel,
			imageContents(buildSegmentationPrompt(pc), img),
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		if err != nil {
			return err
		}
		raw = firstText(resp)
		if raw == "" {
			return blockedOrEmpty(resp, "segment")
		}
		return nil
	})
	if err != nil {
		return nil, mapError("segment image", err)
	}

	result, err := parseSegmentation(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnexpected, "segment image", err)
	}
	result.ProcessingTimeMs = time.Since(started).Milliseconds()
	result.ImageWidth, result.ImageHeight = imageDims(img)
	return result, nil
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.guard != nil {
		return c.guard.Do(ctx, operation, fn)
	}
	return fn(ctx)
}

func (c *Client) checkSize(img []byte) error {
	if len(img) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "check image", errors.New("empty image payload"))
	}
	if len(img) > c.cfg.MaxImageBytes {
		return domain.WrapError(domain.ErrInvalidInput, "check image",
			fmt.Errorf("image is %d bytes, limit is %d", len(img), c.cfg.MaxImageBytes))
	}
	return nil
}

func imageContents(prompt string, img []byte) []*genai.Content {
	return []*genai.Content{{
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: sniffMIME(img), Data: img}},
		},
	}}
}

func sniffMIME(img []byte) string {
	mime := http.DetectContentType(img)
	if mime == "application/octet-stream" {
		return "image/jpeg"
	}
	return mime
}

func imageDims(img []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

func firstInlineImage(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

func blockedOrEmpty(resp *genai.GenerateContentResponse, operation string) error {
	if resp != nil {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return domain.WrapError(domain.ErrSafetyRejected, operation,
				fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
		}
		for _, cand := range resp.Candidates {
			if cand != nil && cand.FinishReason == genai.FinishReasonSafety {
				return domain.WrapError(domain.ErrSafetyRejected, operation,
					errors.New("response withheld by safety filter"))
			}
		}
	}
	return domain.WrapError(domain.ErrUnexpected, operation, errors.New("empty model response"))
}
