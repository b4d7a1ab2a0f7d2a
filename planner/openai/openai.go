// Package openai plans through the OpenAI Responses API.
package openai

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/planner"
)

// ProviderName is the name the provider is registered under.
const ProviderName = "openai"

// DefaultBaseURL is the API root used when neither Settings.BaseURL nor OPENAI_BASE_URL is set.
const DefaultBaseURL = "https://api.openai.com/v1"

func init() {
	planner.Register(ProviderName, func(settings planner.Settings, logger logging.Logger) (planner.Planner, error) {
		return New(settings, logger)
	})
}

// Planner is an OpenAI-backed planner.
type Planner struct {
	settings planner.Settings
	baseURL  string
	client   *http.Client
	schema   map[string]interface{}
	logger   logging.Logger
}

// New returns a planner. The API key is read from OPENAI_API_KEY when not configured.
func New(settings planner.Settings, logger logging.Logger) (*Planner, error) {
	settings = settings.WithDefaults()
	if settings.APIKey == "" {
		settings.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if settings.APIKey == "" {
		return nil, errors.New("openai: no API key (set OPENAI_API_KEY)")
	}
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	schema, err := plan.SchemaMap()
	if err != nil {
		return nil, errors.Wrap(err, "openai: building plan schema")
	}
	return &Planner{
		settings: settings,
		baseURL:  strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/responses"),
		client:   &http.Client{Timeout: settings.Timeout},
		schema:   schema,
		logger:   logger,
	}, nil
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type inputMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type textFormat struct {
	Type   string                 `json:"type"`
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict bool                   `json:"strict"`
}

type request struct {
	Model       string         `json:"model"`
	Input       []inputMessage `json:"input"`
	Temperature float64        `json:"temperature"`
	Text        struct {
		Format textFormat `json:"format"`
	} `json:"text"`
}

type response struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r response) outputText() string {
	var sb strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				sb.WriteString(c.Text)
			}
		}
	}
	return sb.String()
}

// Plan implements planner.Planner.
func (p *Planner) Plan(ctx context.Context, req planner.Request) (plan.Plan, error) {
	body := request{
		Model: p.settings.Model,
		Input: []inputMessage{
			{Role: "system", Content: planner.SystemPrompt},
			{Role: "user", Content: planner.UserPrompt(req)},
		},
		Temperature: p.settings.Temperature,
	}
	body.Text.Format = textFormat{Type: "json_schema", Name: "plan", Schema: p.schema}
	if req.Image != nil {
		encoded, err := planner.EncodeImage(req.Image, p.settings.MaxImageSide)
		if err != nil {
			return plan.Plan{}, err
		}
		body.Input = append(body.Input, inputMessage{Role: "user", Content: []contentPart{
			{Type: "input_text", Text: planner.ImageCaption},
			{Type: "input_image", ImageURL: "data:image/png;base64," + encoded},
		}})
	}

	var resp response
	headers := map[string]string{"Authorization": "Bearer " + p.settings.APIKey}
	if err := planner.PostJSON(ctx, p.client, p.baseURL+"/responses", headers, body, &resp); err != nil {
		return plan.Plan{}, errors.Wrap(err, "openai")
	}
	if resp.Error != nil {
		return plan.Plan{}, errors.Errorf("openai: %s", resp.Error.Message)
	}
	text := resp.outputText()
	p.logger.Debugw("plan response", "model", p.settings.Model, "chars", len(text))
	return plan.Decode([]byte(text))
}
