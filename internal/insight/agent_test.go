package insight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledAgentFallsBack(t *testing.T) {
	agent := New(Config{Enabled: false})

	out, err := agent.Evaluate(context.Background(), Input{Ticker: "SPY", Price: 500})
	require.NoError(t, err)
	assert.Equal(t, "neutral", out.Stance)
	assert.Contains(t, out.Summary, "SPY")
}

func TestNilAgentFallsBack(t *testing.T) {
	var agent *Agent
	out, err := agent.Evaluate(context.Background(), Input{Ticker: "SPY", Price: 500})
	require.NoError(t, err)
	assert.Equal(t, "neutral", out.Stance)
}

func TestFallbackIncludesDailyChange(t *testing.T) {
	pct := "1.01"
	out := Fallback(Input{Ticker: "SPY", Price: 500, DailyChangePct: &pct})
	assert.Contains(t, out.Summary, "1.01%")
	assert.NotNil(t, out.Risks)
}

func TestParseCommentaryPlainJSON(t *testing.T) {
	out, err := parseCommentary(`{"stance":"bullish","summary":"Up day.","risks":["concentration"]}`)
	require.NoError(t, err)
	assert.Equal(t, "bullish", out.Stance)
	assert.Equal(t, []string{"concentration"}, out.Risks)
}

func TestParseCommentaryFencedJSON(t *testing.T) {
	text := "Here you go:\n```json\n{\"stance\":\"bearish\",\"summary\":\"Down day.\",\"risks\":[]}\n```"
	out, err := parseCommentary(text)
	require.NoError(t, err)
	assert.Equal(t, "bearish", out.Stance)
}

func TestParseCommentaryNoJSON(t *testing.T) {
	_, err := parseCommentary("the model rambled instead")
	assert.Error(t, err)
}

func TestSanitizeUnknownStance(t *testing.T) {
	out := sanitize(Commentary{Stance: "to the moon"})
	assert.Equal(t, "neutral", out.Stance)
	assert.NotNil(t, out.Risks)
}
