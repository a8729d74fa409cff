package llm

// options.go holds the shared request option parsing and token counting
// utilities used by every provider implementation.

// DefaultMaxTokens bounds generated output when the caller does not
// specify a limit.
const DefaultMaxTokens = 1024

// RequestOptions is the standardized set of per-request parameters the
// providers understand.
type RequestOptions struct {
	// MaxTokens caps the generated output length.
	MaxTokens int
	// Model overrides the client's configured model for this request.
	Model string
	// Temperature controls sampling randomness. Nil uses the provider
	// default.
	Temperature *float64
	// System is an instruction that shapes the model's behavior; how it
	// is delivered differs per provider.
	System string
}

// ParseRequestOptions extracts standardized parameters from a generic
// option map, falling back to defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, "max_tokens", DefaultMaxTokens, isPositiveInt),
		Model:     extractString(opts, "model", defaultModel, isNonEmptyString),
		System:    extractString(opts, "system", "", nil),
	}

	if temp := extractFloat64(opts, "temperature", -1, isValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	return options
}

func extractInt(opts map[string]any, key string, defaultVal int, valid func(int) bool) int {
	if opts == nil {
		return defaultVal
	}
	val, ok := opts[key].(int)
	if !ok || (valid != nil && !valid(val)) {
		return defaultVal
	}
	return val
}

func extractString(opts map[string]any, key string, defaultVal string, valid func(string) bool) string {
	if opts == nil {
		return defaultVal
	}
	val, ok := opts[key].(string)
	if !ok || (valid != nil && !valid(val)) {
		return defaultVal
	}
	return val
}

func extractFloat64(opts map[string]any, key string, defaultVal float64, valid func(float64) bool) float64 {
	if opts == nil {
		return defaultVal
	}
	val, ok := opts[key].(float64)
	if !ok || (valid != nil && !valid(val)) {
		return defaultVal
	}
	return val
}

func isPositiveInt(val int) bool { return val > 0 }

func isNonEmptyString(val string) bool { return val != "" }

// Temperature range covers providers that allow up to 2.0.
func isValidTemperature(val float64) bool { return val >= 0.0 && val <= 2.0 }

func clampFloat64(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// TokenCounter estimates token counts when a provider does not report
// usage. The ratio is an approximation for English text.
type TokenCounter struct {
	CharactersPerToken float64
}

// NewTokenCounter returns a counter with the standard 4:1 ratio.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens estimates the token count of text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount prefers the provider-reported count, falling back to an
// estimate when the report is missing or zero.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
