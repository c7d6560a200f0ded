package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"savvycent/internal/core"
)

// MaxReceiptBytes bounds uploaded receipt images.
const MaxReceiptBytes = 5 << 20

var receiptMimeTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

type receiptResponse struct {
	Amount       json.Number `json:"amount"`
	Date         string      `json:"date"`
	Description  string      `json:"description"`
	MerchantName string      `json:"merchantName"`
	Category     string      `json:"category"`
}

func receiptPrompt() string {
	return `Analyze this receipt image and extract the following information in JSON format:
- Total amount (just the number)
- Date (in ISO format)
- Description or items purchased (brief summary)
- Merchant/store name
- Suggested category (one of: ` + strings.Join(core.ExpenseCategories, ",") + `)

Only respond with valid JSON in this exact format:
{"amount": number, "date": "ISO date string", "description": "string", "merchantName": "string", "category": "string"}

If it's not a receipt, return an empty object.`
}

// ScanReceipt extracts receipt fields from an image. A zero ReceiptData
// with a nil error means the image is not a receipt.
func (c *Client) ScanReceipt(ctx context.Context, image []byte, mimeType string) (core.ReceiptData, error) {
	if len(image) == 0 {
		return core.ReceiptData{}, fmt.Errorf("empty receipt image: %w", core.ErrValidation)
	}
	if len(image) > MaxReceiptBytes {
		return core.ReceiptData{}, fmt.Errorf("receipt image larger than %d bytes: %w", MaxReceiptBytes, core.ErrValidation)
	}
	if !slices.Contains(receiptMimeTypes, mimeType) {
		return core.ReceiptData{}, fmt.Errorf("unsupported image type %q: %w", mimeType, core.ErrValidation)
	}
	if c.api == nil {
		return core.ReceiptData{}, fmt.Errorf("receipt scanning not configured: %w", core.ErrUpstream)
	}

	text, err := c.complete(ctx, []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: receiptPrompt()},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(image, mimeType),
				Detail: openai.ImageURLDetailAuto,
			}},
		},
	}})
	if err != nil {
		return core.ReceiptData{}, fmt.Errorf("scan receipt: %v: %w", err, core.ErrUpstream)
	}

	data, err := parseReceipt(text, time.Now())
	if err != nil {
		return core.ReceiptData{}, fmt.Errorf("parse receipt response: %v: %w", err, core.ErrUpstream)
	}
	return data, nil
}

func parseReceipt(text string, now time.Time) (core.ReceiptData, error) {
	var raw receiptResponse
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return core.ReceiptData{}, err
	}

	var data core.ReceiptData
	if raw.Amount != "" {
		amt, err := core.ParseAmount(raw.Amount.String())
		if err != nil {
			return core.ReceiptData{}, fmt.Errorf("amount %q: %w", raw.Amount, err)
		}
		data.Amount = amt
	}
	data.Description = strings.TrimSpace(raw.Description)
	data.MerchantName = strings.TrimSpace(raw.MerchantName)
	if data.IsEmpty() {
		return core.ReceiptData{}, nil
	}

	data.Date = parseReceiptDate(raw.Date, now)
	data.Category = "other-expense"
	if c := strings.ToLower(strings.TrimSpace(raw.Category)); slices.Contains(core.ExpenseCategories, c) {
		data.Category = c
	}
	return data, nil
}

func parseReceiptDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}
