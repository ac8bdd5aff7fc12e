// Package assist wraps the optional language model used to read messages the
// rule-based parser cannot, and to polish resolved replies.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"preciobot/internal"
)

// Extraction is what the model read out of a message. Either field may be
// empty.
type Extraction struct {
	Plan  string `json:"financiera"`
	Model string `json:"modelo"`
}

type Assistant interface {
	ExtractQuery(ctx context.Context, message string) (Extraction, error)
	Enhance(ctx context.Context, reply, message string, record internal.CatalogRecord) (string, error)
}

var ErrEmptyResponse = errors.New("assistant returned no text")

type Gemini struct {
	client    *genai.Client
	extractor *genai.GenerativeModel
	writer    *genai.GenerativeModel
	timeout   time.Duration
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	extractor := client.GenerativeModel(modelName)
	extractor.SetTemperature(0.1)
	extractor.ResponseMIMEType = "application/json"
	extractor.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(
		"Eres un asistente especializado en análisis de consultas sobre precios de celulares y financieras.",
	)}}

	writer := client.GenerativeModel(modelName)
	writer.SetTemperature(0.4)
	writer.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(
		"Eres un asistente de ventas especializado en celulares y planes de financiación. " +
			"Nunca cambies precios, modelos ni porcentajes.",
	)}}

	return &Gemini{client: client, extractor: extractor, writer: writer, timeout: 15 * time.Second}, nil
}

func (g *Gemini) ExtractQuery(ctx context.Context, message string) (Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.extractor.GenerateContent(ctx, genai.Text(extractPrompt(message)))
	if err != nil {
		return Extraction{}, fmt.Errorf("gemini extract: %w", err)
	}
	return parseExtraction(extractText(resp))
}

func (g *Gemini) Enhance(ctx context.Context, reply, message string, record internal.CatalogRecord) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.writer.GenerateContent(ctx, genai.Text(enhancePrompt(reply, message, record)))
	if err != nil {
		return "", fmt.Errorf("gemini enhance: %w", err)
	}
	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func extractPrompt(message string) string {
	plans := make([]string, 0, len(internal.Plans))
	for _, p := range internal.Plans {
		plans = append(plans, string(p))
	}
	return fmt.Sprintf(`Analiza la consulta del usuario y extrae:
1. La financiera solicitada (%s).
2. El modelo exacto del celular, incluyendo almacenamiento y RAM si se mencionan.

Consulta: %q

Devuelve solo JSON con las claves "financiera" y "modelo". Usa null cuando no se pueda determinar un valor.`,
		strings.Join(plans, ", "), message)
}

func enhancePrompt(reply, message string, record internal.CatalogRecord) string {
	var data strings.Builder
	for _, h := range record.Headers {
		if h == "" {
			continue
		}
		fmt.Fprintf(&data, "%s: %s\n", h, record.Field(h))
	}
	return fmt.Sprintf(`El usuario preguntó: %q.

Información de la hoja de cálculo:
%s
Respuesta original:
%s

Mejora esta respuesta para que sea más natural y útil conservando exactamente la información técnica y los valores. Responde en español y de forma breve.`,
		message, data.String(), reply)
}

// parseExtraction accepts the model's JSON, with or without a code fence.
func parseExtraction(text string) (Extraction, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return Extraction{}, ErrEmptyResponse
	}

	var raw struct {
		Plan  *string `json:"financiera"`
		Model *string `json:"modelo"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Extraction{}, fmt.Errorf("parse extraction: %w", err)
	}

	var out Extraction
	if raw.Plan != nil {
		out.Plan = strings.TrimSpace(*raw.Plan)
	}
	if raw.Model != nil {
		out.Model = strings.TrimSpace(*raw.Model)
	}
	return out, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var result strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				result.WriteString(string(text))
			}
		}
		// The first candidate with content is the answer.
		if result.Len() > 0 {
			break
		}
	}
	return result.String()
}
