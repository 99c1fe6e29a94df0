package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiModel runs chat sessions on Gemini with function calling.
type GeminiModel struct {
	client  *genai.Client
	modelID string
}

func NewGeminiModel(ctx context.Context, apiKey, modelID string) (*GeminiModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("assistant: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to create gemini client: %w", err)
	}
	return &GeminiModel{client: client, modelID: modelID}, nil
}

func (g *GeminiModel) NewSession(system string) Session {
	model := g.client.GenerativeModel(g.modelID)
	model.SetTemperature(0)
	model.Tools = []*genai.Tool{{FunctionDeclarations: Declarations()}}
	model.ToolConfig = &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingAuto},
	}
	if strings.TrimSpace(system) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	return &geminiSession{chat: model.StartChat()}
}

func (g *GeminiModel) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

type geminiSession struct {
	chat *genai.ChatSession
}

func (s *geminiSession) Send(ctx context.Context, text string) (Reply, error) {
	resp, err := s.chat.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return Reply{}, fmt.Errorf("gemini: %w", err)
	}
	return replyFrom(resp)
}

func (s *geminiSession) Respond(ctx context.Context, results []Result) (Reply, error) {
	parts := make([]genai.Part, 0, len(results))
	for _, r := range results {
		parts = append(parts, genai.FunctionResponse{Name: r.Command, Response: responseMap(r)})
	}
	resp, err := s.chat.SendMessage(ctx, parts...)
	if err != nil {
		return Reply{}, fmt.Errorf("gemini: %w", err)
	}
	return replyFrom(resp)
}

func replyFrom(resp *genai.GenerateContentResponse) (Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return Reply{}, errors.New("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return Reply{}, errors.New("gemini returned empty content")
	}
	var out Reply
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			args, err := json.Marshal(p.Args)
			if err != nil {
				return Reply{}, fmt.Errorf("gemini: encode %s args: %w", p.Name, err)
			}
			out.Calls = append(out.Calls, Call{Name: p.Name, Args: args})
		}
	}
	out.Text = strings.TrimSpace(text.String())
	return out, nil
}

// responseMap flattens a result into the map shape function responses need.
func responseMap(r Result) map[string]any {
	b, err := json.Marshal(r)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}
	return m
}
