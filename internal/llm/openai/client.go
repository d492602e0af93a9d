package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/llm"
)

// Client implements llm.Solver on top of go-openai. Any OpenAI-compatible
// chat/completions endpoint works (OpenAI, DashScope, vLLM ...).
type Client struct {
	cfg    Config
	api    *goopenai.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		api:    goopenai.NewClientWithConfig(oc),
		logger: logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Complete sends one multimodal chat completion.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (llm.Completion, error) {
	rid := p.RequestID
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(p.User),
		"images", len(p.Images),
	)

	req := goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages:    c.buildMessages(p),
	}
	if c.cfg.JSONMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(callCtx, req)
	if err != nil {
		cerr := classify(ctx, err)
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "error", err,
			"kind", common.KindOf(cerr),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, cerr
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.complete.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Completion{}, common.ResponseFormatError("no choices in response", nil)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonContentFilter {
		return llm.Completion{}, common.PermanentDispatchError("response blocked by content filter", nil)
	}

	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"finish_reason", string(choice.FinishReason),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Completion{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
	}, nil
}

func (c *Client) buildMessages(p llm.Prompt) []goopenai.ChatCompletionMessage {
	var msgs []goopenai.ChatCompletionMessage
	if p.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: p.System,
		})
	}
	if len(p.Images) == 0 {
		return append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleUser,
			Content: p.User,
		})
	}

	parts := []goopenai.ChatMessagePart{{Type: goopenai.ChatMessagePartTypeText, Text: p.User}}
	for _, img := range p.Images {
		if img.Label != "" {
			parts = append(parts, goopenai.ChatMessagePart{
				Type: goopenai.ChatMessagePartTypeText,
				Text: "Figure for " + img.Label + ":",
			})
		}
		parts = append(parts, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{
				URL:    llm.DataURL(img.MIMEType, img.Data),
				Detail: goopenai.ImageURLDetail(c.cfg.ImageDetail),
			},
		})
	}
	return append(msgs, goopenai.ChatCompletionMessage{
		Role:         goopenai.ChatMessageRoleUser,
		MultiContent: parts,
	})
}

// classify maps client errors onto the dispatch error kinds.
// parent is the caller's context: its cancellation is not a provider timeout.
func classify(parent context.Context, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return byStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return byStatus(reqErr.HTTPStatusCode, "request failed", err)
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return common.TransientDispatchError("call timed out", err)
	}
	if parent.Err() != nil {
		return common.TransientDispatchError("call cancelled", err)
	}
	// Connection resets, DNS failures, truncated bodies.
	return common.TransientDispatchError("call failed", err)
}

func byStatus(code int, msg string, err error) error {
	switch {
	case code == 408, code == 409, code == 425, code == 429, code >= 500:
		return common.TransientDispatchError(msg, err)
	case code == 0:
		return common.TransientDispatchError(msg, err)
	default:
		return common.PermanentDispatchError(msg, err)
	}
}
