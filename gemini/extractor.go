// Package gemini implements extraction and embedding using Google Gemini.
package gemini

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/orgkb/orgkb"
	"google.golang.org/genai"
)

const extractModel = "gemini-2.5-flash"

// Ensure Extractor implements orgkb.Extractor at compile time.
var _ orgkb.Extractor = (*Extractor)(nil)

// Extractor implements orgkb.Extractor using Google Gemini. Structured
// output is enforced through a response schema derived from the
// procedure schema, so the model can only answer in the declared
// fields. The caller still validates the result; model output is never
// trusted as-is.
type Extractor struct {
	client *genai.Client
}

// NewExtractor creates a new Extractor.
func NewExtractor(client *genai.Client) *Extractor {
	return &Extractor{client: client}
}

// ExtractStructured extracts the schema's fields from a context window.
func (e *Extractor) ExtractStructured(ctx context.Context, schema orgkb.Schema, contextText string) (map[string]string, error) {
	if len(schema.Fields) == 0 {
		return nil, orgkb.Errorf(orgkb.EINVALID, "schema has no fields")
	}
	if strings.TrimSpace(contextText) == "" {
		return nil, orgkb.Errorf(orgkb.EINVALID, "empty context text")
	}

	config := buildConfig(schema)
	result, err := e.client.Models.GenerateContent(ctx, extractModel,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: buildPrompt(schema, contextText)}},
		}},
		config,
	)
	if err != nil {
		return nil, orgkb.Errorf(orgkb.EUNAVAILABLE, "gemini extraction: %v", err)
	}
	if result == nil {
		return nil, orgkb.Errorf(orgkb.EINTERNAL, "gemini returned nil result")
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(result.Text()), &fields); err != nil {
		return nil, orgkb.Errorf(orgkb.EINTERNAL, "gemini returned invalid JSON: %v", err)
	}
	// Empty strings mean the field is absent from the page; drop them so
	// absence is not stored as a fact.
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			delete(fields, name)
		}
	}
	return fields, nil
}

// buildConfig returns the GenerateContentConfig with a JSON response
// schema matching the procedure schema.
func buildConfig(schema orgkb.Schema) *genai.GenerateContentConfig {
	temp := float32(0.0)
	props := make(map[string]*genai.Schema, len(schema.Fields))
	for _, f := range schema.Fields {
		props[f.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: f.Description,
		}
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{
				Text: "You extract facts about administrative procedures from Polish municipal web pages. Answer based only on the page text provided. If a field is not stated on the page, return an empty string for it. Never guess.",
			}},
		},
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
		},
	}
}

// buildPrompt builds the user prompt containing the page text and the
// fields to extract.
func buildPrompt(schema orgkb.Schema, contextText string) string {
	var sb strings.Builder
	sb.WriteString("<page>\n")
	sb.WriteString(contextText)
	sb.WriteString("\n</page>\n\n")
	sb.WriteString("Extract the following fields:\n")
	for _, f := range schema.Fields {
		sb.WriteString("- ")
		sb.WriteString(f.Name)
		if f.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(f.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
