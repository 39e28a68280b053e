package diagnose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/senseihq/sensei-go/pkg/core"
	"github.com/senseihq/sensei-go/pkg/core/types"
)

// analysisSchema constrains the model output to the Analysis wire shape.
var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"mode": {Type: genai.TypeString},
		"stepByStepLogic": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"steps":                 {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"incorrectStepIndex":    {Type: genai.TypeInteger},
				"criticalDeviationType": {Type: genai.TypeString},
			},
			Required: []string{"steps", "incorrectStepIndex", "criticalDeviationType"},
		},
		"errorBoundingBox": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"box_2d": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeNumber}},
				"label":  {Type: genai.TypeString},
			},
		},
		"correctSolution": {Type: genai.TypeString},
		"finalAnswer":     {Type: genai.TypeString},
		"examTrapAlert":   {Type: genai.TypeString},
		"thinkingReplay": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"header":  {Type: genai.TypeString},
				"moments": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			},
			Required: []string{"header", "moments"},
		},
		"shortcutMethod":    {Type: genai.TypeString},
		"cognitiveInsights": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"videoRecommendation": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":       {Type: genai.TypeString},
				"explanation": {Type: genai.TypeString},
				"link":        {Type: genai.TypeString},
			},
		},
		"modeSummaryFooter": {Type: genai.TypeString},
	},
}

// GenAIGenerator is the production Generator, backed by the Gemini API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator builds a Gemini-backed generator. model defaults to
// DefaultModel when empty.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, core.NewAuthenticationError("missing API key")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewAPIError(fmt.Sprintf("create client: %v", err))
	}
	return &GenAIGenerator{client: client, model: model}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, req Request) (string, []types.GroundingSource, error) {
	var parts []*genai.Part
	if att := req.Attachment; att != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: att.MIMEType, Data: att.Data},
		})
	}
	parts = append(parts, genai.NewPartFromText(Prompt(req)))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    analysisSchema,
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(ThinkingBudget)),
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return "", nil, classifyAPIError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", nil, core.NewMalformedResponseError("empty model response")
	}
	return text, groundingSources(resp), nil
}

func groundingSources(resp *genai.GenerateContentResponse) []types.GroundingSource {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var sources []types.GroundingSource
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web == nil {
			continue
		}
		sources = append(sources, types.GroundingSource{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return sources
}

// classifyAPIError maps backend failures onto the error taxonomy so the
// caller can offer a targeted remedy instead of a generic retry prompt.
func classifyAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return core.NewRateLimitError("diagnosis quota exceeded", 0)
		case apiErr.Code == 401 || apiErr.Code == 403:
			return core.NewAuthenticationError(apiErr.Message)
		case strings.Contains(apiErr.Message, "Requested entity was not found"):
			return core.NewAuthenticationError(apiErr.Message)
		default:
			return core.NewAPIError(apiErr.Message)
		}
	}
	if strings.Contains(err.Error(), "429") {
		return core.NewRateLimitError("diagnosis quota exceeded", 0)
	}
	return core.NewAPIError(err.Error())
}
