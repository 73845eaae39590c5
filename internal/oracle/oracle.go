// Package oracle is the generative decision backend: it sends a battlefield
// summary to the Anthropic Messages API and parses the structured answer.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ai"
)

// Defaults applied by New.
const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 512
)

var (
	// ErrRateLimited is returned when the backend refuses for load.
	ErrRateLimited = errors.New("oracle: rate limited")
	// ErrMalformed is returned when the reply holds no decision object.
	ErrMalformed = errors.New("oracle: malformed response")
)

const systemPrompt = `You control one monster in a turn-based tactical battle on a square grid.
You receive the battlefield as JSON. Reply with a single JSON object and nothing else:
{"rationale": string, "dialogue": string, "destination": {"x": int, "y": int} or null,
 "ability_id": string, "target_id": string, "center": {"x": int, "y": int} or null,
 "roll": int, "damage": int, "narrative": string}
Only use ability ids from actor.abilities and target ids from allies or enemies.
Movement is limited to actor.speed squares. Leave ability_id empty to only move.`

// messageCreator is the subset of the SDK's MessageService in use.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config configures a Client.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Logger    *zap.Logger
}

// Client implements ai.Oracle over the Messages API.
type Client struct {
	messages  messageCreator
	model     anthropic.Model
	maxTokens int64
	logger    *zap.Logger
}

// New builds a Client talking to the Anthropic API.
//
// Precondition: cfg.APIKey must be non-empty.
func New(cfg Config) *Client {
	if cfg.APIKey == "" {
		panic("oracle.New: APIKey must not be empty")
	}
	sdk := anthropic.NewClient(option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(1))
	return newClient(&sdk.Messages, cfg)
}

func newClient(m messageCreator, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{messages: m, model: anthropic.Model(cfg.Model), maxTokens: cfg.MaxTokens, logger: cfg.Logger}
}

// Decide asks the model for sum.Actor's turn.
//
// Postcondition: a non-nil error wraps ErrRateLimited, ErrMalformed, the
// context error or the transport error.
func (c *Client) Decide(ctx context.Context, sum *ai.Summary) (*ai.Decision, error) {
	prompt, err := Prompt(sum)
	if err != nil {
		return nil, err
	}
	msg, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("oracle.Decide: %w: %w", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("oracle.Decide: %w", err)
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	d, err := ParseDecision(text.String())
	if err != nil {
		c.logger.Debug("unparseable decision", zap.String("actor", sum.Actor.ID), zap.String("reply", text.String()))
		return nil, err
	}
	return d, nil
}

// Prompt renders sum as the user message.
func Prompt(sum *ai.Summary) (string, error) {
	raw, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", fmt.Errorf("oracle.Prompt: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d. You are %s (%s).\n", sum.Round, sum.Actor.Name, sum.Actor.ID)
	if w := sum.WeakestEnemy(); w != nil {
		fmt.Fprintf(&b, "The most wounded enemy is %s at %.0f%% health.\n", w.ID, w.HPPercent())
	}
	b.WriteString("Battlefield:\n")
	b.Write(raw)
	return b.String(), nil
}

// ParseDecision extracts the first JSON object from reply. Prose or code
// fences around the object are ignored.
func ParseDecision(reply string) (*ai.Decision, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no json object", ErrMalformed)
	}
	var d ai.Decision
	if err := json.Unmarshal([]byte(reply[start:end+1]), &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &d, nil
}
