package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ValidationErrorKind distinguishes why the pipeline could not reach a
// verdict. Each kind maps to a distinct caller-visible outcome; none of them
// are ever folded into a Rejected verdict.
type ValidationErrorKind string

const (
	ValidationUnreachable   ValidationErrorKind = "unreachable"
	ValidationTimeout       ValidationErrorKind = "timeout"
	ValidationMalformed     ValidationErrorKind = "malformed_response"
	ValidationQuotaExceeded ValidationErrorKind = "quota_exceeded"
)

type ValidationError struct {
	Kind ValidationErrorKind
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("validation %s", e.Kind)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Verdict is the vision model's judgment of one photo.
type Verdict struct {
	Valid     bool   `json:"valid"`
	Reasoning string `json:"reasoning"`
}

// GeneratedActivity is one AI-proposed treasure hunt task.
type GeneratedActivity struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	ValidationPrompt string `json:"ai_validation_prompt"`
	Location         string `json:"location_sydney"`
}

// GroqService talks to the Groq OpenAI-compatible API: a vision model for
// photo validation and a text model for activity generation.
type GroqService struct {
	client      *resty.Client
	visionModel string
	textModel   string
}

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultVisionModel = "meta-llama/llama-4-scout-17b-16e-instruct"
	defaultTextModel   = "llama-3.3-70b-versatile"
	validationTimeout  = 30 * time.Second
	validationRetries  = 2
)

func NewGroqService() *GroqService {
	baseURL := os.Getenv("GROQ_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	visionModel := os.Getenv("GROQ_VISION_MODEL")
	if visionModel == "" {
		visionModel = defaultVisionModel
	}
	textModel := os.Getenv("GROQ_TEXT_MODEL")
	if textModel == "" {
		textModel = defaultTextModel
	}
	timeout := validationTimeout
	if v := os.Getenv("GROQ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(os.Getenv("GROQ_API_KEY")).
		SetTimeout(timeout).
		SetRetryCount(validationRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only transient failures: network errors and 5xx. A parsed
			// negative verdict or a quota response is never retried.
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() >= 500
		})

	return &GroqService{client: client, visionModel: visionModel, textModel: textModel}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ValidatePhoto asks the vision model whether the photo completes the
// activity. imageDataURI must be a "data:image/jpeg;base64," payload within
// the upload budget. The response is parsed strictly: both `valid` and
// `reasoning` must be present, otherwise the caller sees a MalformedResponse
// failure rather than a fabricated verdict.
func (s *GroqService) ValidatePhoto(ctx context.Context, imageDataURI, description, criterion string) (*Verdict, error) {
	prompt := fmt.Sprintf(`You are validating a photo for a kids treasure hunt activity.
Activity: %s
Validation criteria: %s

Does this photo show the child actually completing the activity? Consider:
- Does the image match what was asked?
- Does it look like a real photo (not a screenshot or stock image)?
- Is it appropriate for a kids app?

Respond with JSON only: {"valid": true/false, "reasoning": "brief explanation"}`, description, criterion)

	body := chatRequest{
		Model: s.visionModel,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]string{"url": imageDataURI}},
				},
			},
		},
		Temperature: 0.2,
		MaxTokens:   256,
	}

	content, err := s.complete(ctx, body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Valid     *bool   `json:"valid"`
		Reasoning *string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripJSONFences(content)), &parsed); err != nil {
		return nil, &ValidationError{Kind: ValidationMalformed, Err: fmt.Errorf("unparseable verdict %q: %w", truncate(content, 200), err)}
	}
	if parsed.Valid == nil || parsed.Reasoning == nil {
		return nil, &ValidationError{Kind: ValidationMalformed, Err: fmt.Errorf("verdict missing required fields: %q", truncate(content, 200))}
	}
	return &Verdict{Valid: *parsed.Valid, Reasoning: *parsed.Reasoning}, nil
}

// GenerateActivities asks the text model for count new activities in the
// given category and age range.
func (s *GroqService) GenerateActivities(ctx context.Context, category string, ageMin, ageMax, count int, location string) ([]GeneratedActivity, error) {
	prompt := fmt.Sprintf(`Generate %d treasure hunt activities for kids in Sydney.
Category: %s
Age group: %d-%d years
Location/area: %s

For each activity provide:
- title: Short catchy title
- description: What the child should find/do (1-2 sentences)
- ai_validation_prompt: What to look for in the photo to validate completion (e.g. "Must show a fountain or water feature")
- location_sydney: Specific place if applicable

Return JSON array only, no markdown.`, count, category, ageMin, ageMax, location)

	body := chatRequest{
		Model:       s.textModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.8,
	}

	content, err := s.complete(ctx, body)
	if err != nil {
		return nil, err
	}

	var activities []GeneratedActivity
	if err := json.Unmarshal([]byte(stripJSONFences(content)), &activities); err != nil {
		return nil, &ValidationError{Kind: ValidationMalformed, Err: fmt.Errorf("unparseable activity list: %w", err)}
	}
	return activities, nil
}

// complete runs one chat-completions call and returns the assistant content.
func (s *GroqService) complete(ctx context.Context, body chatRequest) (string, error) {
	var out chatResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", classifyTransportError(err)
	}

	switch {
	case resp.StatusCode() == 429:
		return "", &ValidationError{Kind: ValidationQuotaExceeded, Err: fmt.Errorf("status 429: %s", truncate(resp.String(), 200))}
	case resp.IsError():
		return "", &ValidationError{Kind: ValidationUnreachable, Err: fmt.Errorf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))}
	}

	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &ValidationError{Kind: ValidationMalformed, Err: errors.New("response has no assistant content")}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ValidationError{Kind: ValidationTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ValidationError{Kind: ValidationTimeout, Err: err}
	}
	return &ValidationError{Kind: ValidationUnreachable, Err: err}
}

// stripJSONFences peels a markdown code fence off model output. The models
// are told not to use markdown but do anyway often enough to matter.
func stripJSONFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 && strings.EqualFold(strings.TrimSpace(trimmed[:idx]), "json") {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "json")
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
