// Package gemini plans through the Gemini generateContent API.
package gemini

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/planner"
)

// ProviderName is the name the provider is registered under.
const ProviderName = "gemini"

// DefaultBaseURL is the API root used when neither Settings.BaseURL nor GEMINI_BASE_URL is set.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

func init() {
	planner.Register(ProviderName, func(settings planner.Settings, logger logging.Logger) (planner.Planner, error) {
		return New(settings, logger)
	})
}

// Planner is a Gemini-backed planner.
type Planner struct {
	settings planner.Settings
	baseURL  string
	client   *http.Client
	schema   map[string]interface{}
	logger   logging.Logger
}

// New returns a planner. The API key is read from GEMINI_API_KEY when not configured.
func New(settings planner.Settings, logger logging.Logger) (*Planner, error) {
	settings = settings.WithDefaults()
	if settings.APIKey == "" {
		settings.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if settings.APIKey == "" {
		return nil, errors.New("gemini: no API key (set GEMINI_API_KEY)")
	}
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("GEMINI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	schema, err := plan.SchemaMap()
	if err != nil {
		return nil, errors.Wrap(err, "gemini: building plan schema")
	}
	return &Planner{
		settings: settings,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: settings.Timeout},
		schema:   schema,
		logger:   logger,
	}, nil
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature        float64                `json:"temperature"`
	ResponseMimeType   string                 `json:"responseMimeType"`
	ResponseJSONSchema map[string]interface{} `json:"responseJsonSchema,omitempty"`
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type response struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Plan implements planner.Planner.
func (p *Planner) Plan(ctx context.Context, req planner.Request) (plan.Plan, error) {
	parts := []part{{Text: planner.SystemPrompt + "\n\n" + planner.UserPrompt(req)}}
	if req.Image != nil {
		encoded, err := planner.EncodeImage(req.Image, p.settings.MaxImageSide)
		if err != nil {
			return plan.Plan{}, err
		}
		parts = append(parts, part{InlineData: &inlineData{MimeType: "image/png", Data: encoded}})
	}
	body := request{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:        p.settings.Temperature,
			ResponseMimeType:   "application/json",
			ResponseJSONSchema: p.schema,
		},
	}

	endpoint := p.baseURL + "/models/" + url.PathEscape(p.settings.Model) + ":generateContent"
	headers := map[string]string{"x-goog-api-key": p.settings.APIKey}
	var resp response
	if err := planner.PostJSON(ctx, p.client, endpoint, headers, body, &resp); err != nil {
		return plan.Plan{}, errors.Wrap(err, "gemini")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return plan.Plan{}, errors.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return plan.Plan{}, errors.Wrap(plan.ErrMalformedPlan, "gemini: no candidates")
	}
	var sb strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	p.logger.Debugw("plan response", "model", p.settings.Model, "chars", sb.Len(),
		"finish_reason", resp.Candidates[0].FinishReason)
	return plan.Decode([]byte(sb.String()))
}
