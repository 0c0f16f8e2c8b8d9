package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"meetassist/app/service/analysis"
	"meetassist/app/service/usage"
	"strings"
	"time"

	"google.golang.org/genai"
)

const maxGenerateDuration = 30 * time.Second

var _ analysis.Generator = (*Client)(nil)

func (c *Client) Analyze(ctx context.Context, prompt string, diarize bool) (*analysis.Result, usage.Tokens, error) {
	var result analysis.Result

	tokens, err := c.generateJSON(ctx, prompt, analysisSchema(diarize), &result)
	if err != nil {
		return nil, tokens, fmt.Errorf("analysis request: %w", err)
	}

	return &result, tokens, nil
}

func (c *Client) Suggest(ctx context.Context, prompt string) ([]string, usage.Tokens, error) {
	var result analysis.Suggestions

	tokens, err := c.generateJSON(ctx, prompt, suggestionsSchema(), &result)
	if err != nil {
		return nil, tokens, fmt.Errorf("suggestions request: %w", err)
	}

	return result.Suggestions, tokens, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string, schema *genai.Schema, target any) (usage.Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, maxGenerateDuration)
	defer cancel()

	resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.Analysis.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return usage.Tokens{}, fmt.Errorf("failed to generate content: %w", err)
	}

	var tokens usage.Tokens
	if meta := resp.UsageMetadata; meta != nil {
		tokens.Input = int(meta.PromptTokenCount)
		tokens.Output = int(meta.CandidatesTokenCount)
	}

	text := cleanJSON(resp.Text())
	if text == "" {
		return tokens, fmt.Errorf("empty response")
	}

	if err = json.Unmarshal([]byte(text), target); err != nil {
		return tokens, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return tokens, nil
}

func cleanJSON(result string) string {
	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")
	return strings.TrimSpace(result)
}

func stringArray(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: description,
		Items:       &genai.Schema{Type: genai.TypeString},
	}
}

func analysisSchema(diarize bool) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {
				Type:        genai.TypeString,
				Description: "Summary of the conversation so far.",
			},
			"insights":    stringArray("Key insights from the conversation."),
			"actionItems": stringArray("Action items agreed on or implied."),
			"sentiment": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"overall": {
						Type:        genai.TypeString,
						Description: "Overall sentiment: positive, neutral or negative.",
					},
					"topics": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"topic":     {Type: genai.TypeString},
								"sentiment": {Type: genai.TypeString},
							},
							Required: []string{"topic", "sentiment"},
						},
					},
				},
				Required: []string{"overall", "topics"},
			},
		},
		Required: []string{"summary", "insights", "actionItems", "sentiment"},
	}

	if diarize {
		schema.Properties["diarizedTranscript"] = &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"speaker": {Type: genai.TypeString},
					"text":    {Type: genai.TypeString},
				},
				Required: []string{"speaker", "text"},
			},
		}
	}

	return schema
}

func suggestionsSchema() *genai.Schema {
	suggestions := stringArray("Three short replies the user could say next.")
	suggestions.MinItems = genai.Ptr[int64](3)
	suggestions.MaxItems = genai.Ptr[int64](3)

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"suggestions": suggestions,
		},
		Required: []string{"suggestions"},
	}
}
