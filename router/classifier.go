package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/model"
)

// Classifier maps a message to a Category.
type Classifier interface {
	Classify(ctx context.Context, message string) (Category, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, message string) (Category, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, message string) (Category, error) {
	return f(ctx, message)
}

// ModelClassifier asks a model for the label. It accepts a bare label or a
// JSON object of the form {"service_type": "..."}.
type ModelClassifier struct {
	model  model.Model
	prompt string
}

// NewModelClassifier creates a classifier backed by m.
func NewModelClassifier(m model.Model) *ModelClassifier {
	return &ModelClassifier{model: m, prompt: RoutePrompt()}
}

// Classify implements Classifier.
func (c *ModelClassifier) Classify(ctx context.Context, message string) (Category, error) {
	resp, err := model.Collect(ctx, c.model, model.Request{
		Instructions: c.prompt,
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, message)},
	})
	if err != nil {
		return "", fmt.Errorf("%w: classify: %v", core.ErrExternalService, err)
	}

	return ParseCategory(labelOf(resp.Content.Text()))
}

func labelOf(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") {
		var out struct {
			ServiceType string `json:"service_type"`
		}

		if err := json.Unmarshal([]byte(text), &out); err == nil {
			return out.ServiceType
		}
	}

	return text
}
