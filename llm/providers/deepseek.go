// Package providers registers the concrete LLM providers. Import for side
// effects:
//
//	_ "github.com/fitstack/planworker/llm/providers"
package providers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/fitstack/planworker/llm"
)

// DeepSeekProvider implements the DeepSeek chat-completions API, which speaks
// the OpenAI wire format.
type DeepSeekProvider struct{}

func init() {
	llm.RegisterProvider(&DeepSeekProvider{})
}

// Name returns the provider identifier.
func (d *DeepSeekProvider) Name() string {
	return "deepseek"
}

// BuildURL constructs the DeepSeek chat-completions endpoint.
func (d *DeepSeekProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// SetHeaders adds DeepSeek authentication headers.
func (d *DeepSeekProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("DEEPSEEK_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// chatRequest is the OpenAI-format streaming request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// BuildRequestBody creates the streaming chat-completions body.
func (d *DeepSeekProvider) BuildRequestBody(model string, messages []llm.Message, temperature float64, maxTokens int) ([]byte, error) {
	return json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      true,
	})
}
