// Package insight wraps the OpenAI chat completion API for monthly
// spending insights and receipt extraction.
package insight

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"savvycent/internal/core"
)

const (
	DefaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
	maxInsights    = 3
)

// FallbackInsights are returned whenever the model fails or answers with
// something that is not a JSON array of strings.
var FallbackInsights = []string{
	"Your highest expense category this month might need attention.",
	"Consider setting up a budget for better financial management.",
	"Track your recurring expenses to identify potential savings.",
}

var codeFence = regexp.MustCompile("```(?:json)?\\n?")

// chatCompleter is the part of *openai.Client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	api     chatCompleter
	model   string
	timeout time.Duration
}

// New returns a client for the given API key. An empty key yields a client
// that always falls back for insights and refuses receipt scans.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{model: model, timeout: defaultTimeout}
	if apiKey != "" {
		c.api = openai.NewClient(apiKey)
	}
	return c
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool { return c.api != nil }

// GenerateInsights never fails: any upstream or parse problem returns
// FallbackInsights.
func (c *Client) GenerateInsights(ctx context.Context, stats core.MonthlyStats) []string {
	if c.api == nil {
		return fallback()
	}

	text, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "You are a financial analyst providing monthly financial insights."},
		{Role: openai.ChatMessageRoleUser, Content: insightsPrompt(stats)},
	})
	if err != nil {
		slog.WarnContext(ctx, "Insight generation failed, using fallback", "error", err, "month", stats.MonthName())
		return fallback()
	}

	insights, err := parseInsights(text)
	if err != nil {
		slog.WarnContext(ctx, "Unparseable insights, using fallback", "error", err, "month", stats.MonthName())
		return fallback()
	}
	return insights
}

func fallback() []string {
	return append([]string(nil), FallbackInsights...)
}

func insightsPrompt(stats core.MonthlyStats) string {
	cats := make([]string, 0, len(stats.ByCategory))
	for _, c := range stats.ByCategory {
		cats = append(cats, fmt.Sprintf("%s: $%s", c.Name, c.Amount))
	}

	var b strings.Builder
	b.WriteString("Analyze this financial data and provide 3 concise, actionable insights.\n")
	b.WriteString("Focus on spending patterns and practical advice.\n")
	b.WriteString("Keep it friendly and conversational.\n\n")
	fmt.Fprintf(&b, "Financial Data for %s:\n", stats.MonthName())
	fmt.Fprintf(&b, "- Total Income: $%s\n", stats.TotalIncome)
	fmt.Fprintf(&b, "- Total Expenses: $%s\n", stats.TotalExpenses)
	fmt.Fprintf(&b, "- Net Income: $%s\n", stats.Net())
	fmt.Fprintf(&b, "- Expense Categories: %s\n\n", strings.Join(cats, ", "))
	b.WriteString("Format the response as a JSON array of strings, like this:\n")
	b.WriteString(`["insight 1", "insight 2", "insight 3"]`)
	return b.String()
}

func stripFences(s string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(s, ""))
}

func parseInsights(text string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(stripFences(text)), &out); err != nil {
		return nil, err
	}
	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New("no insights in response")
	}
	if len(cleaned) > maxInsights {
		cleaned = cleaned[:maxInsights]
	}
	return cleaned, nil
}

func (c *Client) complete(ctx context.Context, msgs []openai.ChatCompletionMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: 400,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func dataURL(image []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}
