package llm

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName, credentialsFile string) (*VertexGemini, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	c, err := vertexgenai.NewClient(ctx, projectID, location, opts...)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Model() string { return v.modelName }

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Complete(ctx context.Context, req Request) (*Completion, error) {
	// a model handle per call: system instruction and config are per request
	m := v.client.GenerativeModel(v.modelName)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	m.SetTemperature(req.Temperature)

	var (
		system  []string
		history []*vertexgenai.Content
		last    string
	)
	for i, msg := range req.Messages {
		switch {
		case msg.Role == "system":
			system = append(system, msg.Content)
		case i == len(req.Messages)-1:
			last = msg.Content
		default:
			history = append(history, &vertexgenai.Content{
				Role:  geminiRole(msg.Role),
				Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)},
			})
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &vertexgenai.Content{
			Parts: []vertexgenai.Part{vertexgenai.Text(strings.Join(system, "\n\n"))},
		}
	}

	cs := m.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, vertexgenai.Text(last))
	if err != nil {
		return nil, err
	}

	var out strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				out.WriteString(string(t))
			}
		}
		break
	}
	if out.Len() == 0 {
		return nil, ErrNoChoices
	}

	c := &Completion{Content: out.String(), Model: v.modelName}
	if u := resp.UsageMetadata; u != nil {
		c.PromptTokens = int(u.PromptTokenCount)
		c.CompletionTokens = int(u.CandidatesTokenCount)
		c.TotalTokens = int(u.TotalTokenCount)
	}
	return c, nil
}

func geminiRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}
