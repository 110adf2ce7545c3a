// Package insight generates an optional one-paragraph commentary on a
// computed snapshot. It is strictly additive: the snapshot path never waits
// on it, and every failure degrades to a deterministic fallback.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
)

type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type Commentary struct {
	Stance  string   `json:"stance"`
	Summary string   `json:"summary"`
	Risks   []string `json:"risks"`
}

// Input is the distilled snapshot handed to the model. Optional fields stay
// pointers so the model sees real absence instead of a zero.
type Input struct {
	Ticker         string  `json:"ticker"`
	Price          float64 `json:"price"`
	DailyChangePct *string `json:"daily_change_pct,omitempty"`
	TargetDelta    *string `json:"target_delta,omitempty"`
	BarCount       int     `json:"bar_count"`
}

type Agent struct {
	enabled        bool
	model          *openai.ChatModel
	modelName      string
	disabledReason string
}

func New(cfg Config) *Agent {
	if !cfg.Enabled {
		return &Agent{enabled: false, disabledReason: "disabled by config"}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		log.Printf("insight disabled: missing api key or model")
		return &Agent{enabled: false, disabledReason: "api_key or model missing"}
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	model, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		ByAzure:    cfg.ByAzure,
		APIVersion: cfg.APIVersion,
		Timeout:    timeout,
	})
	if err != nil {
		log.Printf("insight init error: %v", err)
		return &Agent{enabled: false, disabledReason: "init failed"}
	}

	return &Agent{enabled: true, model: model, modelName: cfg.Model}
}

func (a *Agent) Evaluate(ctx context.Context, in Input) (Commentary, error) {
	if a == nil || !a.enabled || a.model == nil {
		return Fallback(in), nil
	}

	payload, _ := json.Marshal(in)

	system := `You are a market commentary writer. Output ONLY valid JSON.
Must include keys: stance (bullish/bearish/neutral), summary (max 2 sentences), risks (array of strings).
Base everything on the numbers given. If a field is missing, do not invent it.
No extra text.`

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(fmt.Sprintf("Snapshot: %s", string(payload))),
	}

	resp, err := a.model.Generate(ctx, messages)
	if err != nil {
		logLLMError(err)
		return Fallback(in), err
	}

	commentary, err := parseCommentary(strings.TrimSpace(resp.Content))
	if err != nil {
		return Fallback(in), err
	}
	return sanitize(commentary), nil
}

// Fallback is the deterministic commentary used whenever the model is
// unavailable or answers garbage.
func Fallback(in Input) Commentary {
	summary := fmt.Sprintf("%s last traded at %.2f.", in.Ticker, in.Price)
	if in.DailyChangePct != nil {
		summary = fmt.Sprintf("%s last traded at %.2f, %s%% on the day.", in.Ticker, in.Price, *in.DailyChangePct)
	}
	return Commentary{
		Stance:  "neutral",
		Summary: summary,
		Risks:   []string{},
	}
}

func parseCommentary(text string) (Commentary, error) {
	var out Commentary
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	jsonStr := extractFirstJSONObject(text)
	if jsonStr == "" {
		return Commentary{}, fmt.Errorf("no json object found")
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return Commentary{}, fmt.Errorf("parse commentary: %w", err)
	}
	return out, nil
}

func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func sanitize(c Commentary) Commentary {
	switch c.Stance {
	case "bullish", "bearish", "neutral":
	default:
		c.Stance = "neutral"
	}
	if c.Risks == nil {
		c.Risks = []string{}
	}
	return c
}

func logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		log.Printf("insight api error: status=%d message=%s", apiErr.HTTPStatusCode, msg)
		return
	}
	log.Printf("insight error: %v", err)
}
