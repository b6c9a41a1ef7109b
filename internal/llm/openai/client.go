package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/joseph-ayodele/brd-breakdown/constants"
	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
	"github.com/joseph-ayodele/brd-breakdown/internal/llm"
)

// maxErrorBody bounds the provider body kept on an UPSTREAM_ERROR.
const maxErrorBody = 2048

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements llm.StoryGenerator with one chat/completions call. It never retries.
func (c *Client) Generate(ctx context.Context, documentText string) (entity.GenerationResult, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()
	log := c.logger.With("req_id", rid, "model", c.cfg.Model)

	log.Info("llm.generate.start",
		"temp", c.cfg.Temperature,
		"max_tokens", c.cfg.MaxTokens,
		"text_len", len(documentText),
	)

	if c.cfg.APIKey == "" {
		log.Error("llm.generate.missing_credential")
		return entity.GenerationResult{}, llm.NewError(constants.FailureMissingCredential, nil, llm.MissingCredentialMessage)
	}

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: llm.BuildPrompt(documentText)}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if c.cfg.JSONMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, log)
	if err != nil {
		lerr := classifyHTTPError(ctx, raw, status, err)
		log.Error("llm.generate.http_error",
			"code", lerr.Code,
			"status", status,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.GenerationResult{}, lerr
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.generate.decode_error",
			"error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.GenerationResult{}, llm.NewError(constants.FailureMalformedResponse, err, "failed to decode completion response")
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		log.Error("llm.generate.no_content",
			"choices", len(cc.Choices),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.GenerationResult{}, llm.NewError(constants.FailureEmptyResponse, nil, "no content received from LLM API")
	}
	content := cc.Choices[0].Message.Content

	out, err := llm.ParseGenerationResult(content)
	if err != nil {
		log.Error("llm.generate.parse_failed",
			"code", llm.CodeOf(err),
			"error", err,
			"content_len", len(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		log.Debug("llm.generate.rejected_content", "content", content)
		return entity.GenerationResult{}, err
	}

	for _, w := range llm.QualityWarnings(out) {
		log.Warn("llm.generate.quality", "warning", w)
	}

	log.Info("llm.generate.ok",
		"epics", len(out.Epics),
		"stories", out.StoryCount(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func classifyHTTPError(ctx context.Context, raw []byte, status int, err error) *llm.Error {
	if status != 0 && status/100 != 2 {
		b := string(raw)
		if len(b) > maxErrorBody {
			b = strings.ToValidUTF8(b[:maxErrorBody], "")
		}
		lerr := llm.NewError(constants.FailureUpstreamError, err, "LLM API error: %d - %s", status, b)
		lerr.StatusCode = status
		lerr.Body = b
		return lerr
	}
	if isTimeout(ctx, err) {
		return llm.NewError(constants.FailureTimeout, err, "LLM API call timed out")
	}
	return llm.NewError(constants.FailureUpstreamUnavailable, err, "LLM API unreachable")
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
