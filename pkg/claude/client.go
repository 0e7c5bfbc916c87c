// Package claude provides the LLM-backed contact extraction client. It is
// an optional augmentation layer: the enrichment pipeline must produce
// complete leads from regex extraction alone when this client is absent or
// failing.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Extractor performs structured contact extraction over page text.
type Extractor interface {
	ExtractContacts(ctx context.Context, pageText string) (*Extraction, error)
}

// Extraction is the structured result returned by the model.
type Extraction struct {
	Emails      []string          `json:"emails"`
	Phones      []string          `json:"phones"`
	SocialLinks map[string]string `json:"social_links"`
	Services    []string          `json:"services"`
}

// Empty reports whether the extraction carries no usable fields.
func (e *Extraction) Empty() bool {
	return e == nil ||
		(len(e.Emails) == 0 && len(e.Phones) == 0 && len(e.SocialLinks) == 0 && len(e.Services) == 0)
}

const systemText = "You are a research analyst extracting business contact data from web page text. " +
	"Return a valid JSON object with keys: emails (array of strings), phones (array of strings in E.164 where possible), " +
	"social_links (object mapping platform name to profile URL), services (array of short service descriptions). " +
	"Use empty arrays/objects for anything not found. Never invent contact details that are not present in the text."

const promptTemplate = `Extract business contact information from the following web page text.

<page_text>
%s
</page_text>

Return only the JSON object.`

// maxPageChars bounds the prompt size; contact details almost always sit in
// headers, footers, and contact sections well within this window.
const maxPageChars = 20000

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// WithBaseURL overrides the API base URL, for testing.
func WithBaseURL(url string) Option {
	return func(c *sdkClient) {
		c.requestOpts = append(c.requestOpts, option.WithBaseURL(url))
	}
}

type sdkClient struct {
	client      sdk.Client
	model       string
	requestOpts []option.RequestOption
}

// NewClient creates an Extractor backed by the official anthropic-sdk-go.
func NewClient(apiKey, model string, opts ...Option) Extractor {
	c := &sdkClient{
		model:       model,
		requestOpts: []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, o := range opts {
		o(c)
	}
	c.client = sdk.NewClient(c.requestOpts...)
	return c
}

func (c *sdkClient) ExtractContacts(ctx context.Context, pageText string) (*Extraction, error) {
	pageText = truncate(pageText, maxPageChars)

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 1024,
		System: []sdk.TextBlockParam{
			{Text: systemText},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(fmt.Sprintf(promptTemplate, pageText))),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "claude: create message")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return ParseExtraction(text.String())
}

// truncate cuts s to at most max bytes without splitting a multi-byte rune;
// a torn rune at the cut would send invalid UTF-8 to the API.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ParseExtraction parses the model's JSON response, tolerating markdown
// code fences around the object.
func ParseExtraction(text string) (*Extraction, error) {
	cleaned := cleanJSON(text)
	var ex Extraction
	if err := json.Unmarshal([]byte(cleaned), &ex); err != nil {
		return nil, eris.Wrap(err, "claude: parse extraction response")
	}
	return &ex, nil
}

// cleanJSON strips markdown code fences and surrounding prose so the body
// can be unmarshaled directly.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	// Fall back to the outermost braces when the model adds prose.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
