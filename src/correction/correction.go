package correction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

var (
	// ErrServiceUnreachable covers transport failures, timeouts and non-2xx replies.
	ErrServiceUnreachable = errors.New("correction service unreachable")
	// ErrEmptyResponse means the service answered without usable text.
	ErrEmptyResponse = errors.New("correction service returned no text")
)

// Request is one correction exchange: the fixed instruction plus the user's text.
type Request struct {
	SystemPrompt string
	Text         string
}

func (r Request) messages() []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(r.SystemPrompt),
		openai.UserMessage(r.Text),
	}
}

type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	// Providers is the OpenRouter provider order; empty lets the router decide.
	Providers  []string
	Timeout    time.Duration
	MaxRetries int
}

// Client sends text to an OpenAI-compatible chat completions endpoint.
type Client struct {
	client       openai.Client
	model        string
	systemPrompt string
	providers    []string
	timeout      time.Duration
	log          *zap.SugaredLogger
}

func New(opts Options, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
		option.WithHeader("X-Title", "grammar-fix"),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(ensureTrailingSlash(opts.BaseURL)))
	}
	return &Client{
		client:       openai.NewClient(reqOpts...),
		model:        opts.Model,
		systemPrompt: opts.SystemPrompt,
		providers:    opts.Providers,
		timeout:      opts.Timeout,
		log:          log,
	}
}

// Correct returns the service's corrected version of text, as-is.
func (c *Client) Correct(ctx context.Context, text string) (string, error) {
	req := Request{SystemPrompt: c.systemPrompt, Text: text}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var callOpts []option.RequestOption
	if len(c.providers) > 0 {
		callOpts = append(callOpts, option.WithJSONSet("provider", map[string]any{
			"order":           c.providers,
			"allow_fallbacks": false,
		}))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    req.messages(),
		Temperature: openai.Float(0.1),
	}, callOpts...)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			c.log.Debugw("correction request rejected", "status", apiErr.StatusCode, "model", c.model)
			return "", fmt.Errorf("%w: status %d", ErrServiceUnreachable, apiErr.StatusCode)
		}
		return "", fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
	}
	c.log.Debugw("correction response received", "model", c.model, "choices", len(resp.Choices), "elapsed", time.Since(start))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrEmptyResponse)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: blank content", ErrEmptyResponse)
	}
	return content, nil
}

// Ping checks that the endpoint accepts the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if _, err := c.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
	}
	return nil
}

func (c *Client) Model() string { return c.model }

func ensureTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
