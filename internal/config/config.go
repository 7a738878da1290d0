// Package config provides configuration types and loading for policyscan.
package config

// Config is the root configuration struct.
// Top-level groups: LLM, OCR, PDF, SQL, WebSearch, Storage.
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	OCR       OCRConfig       `json:"ocr"`
	PDF       PDFConfig       `json:"pdf"`
	SQL       SQLConfig       `json:"sql"`
	WebSearch WebSearchConfig `json:"webSearch"`
	Storage   StorageConfig   `json:"storage"`
	LogLevel  string          `json:"logLevel" envconfig:"LOG_LEVEL"`
}

// LLMConfig groups provider selection and model settings.
type LLMConfig struct {
	Provider        string  `json:"provider" envconfig:"PROVIDER"`
	OpenAIAPIKey    string  `json:"openaiApiKey" envconfig:"OPENAI_API_KEY"`
	OpenAIAPIBase   string  `json:"openaiApiBase" envconfig:"OPENAI_API_BASE"`
	OpenAIModel     string  `json:"openaiModel" envconfig:"OPENAI_MODEL"`
	AnthropicAPIKey string  `json:"anthropicApiKey" envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string  `json:"anthropicModel" envconfig:"ANTHROPIC_MODEL"`
	MaxTokens       int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature     float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// OCRConfig configures the recognition service client.
type OCRConfig struct {
	Endpoint       string `json:"endpoint" envconfig:"OCR_ENDPOINT"`
	TimeoutSeconds int    `json:"timeoutSeconds" envconfig:"OCR_TIMEOUT_SECONDS"`
}

// PDFConfig configures document loading.
type PDFConfig struct {
	DPI int `json:"dpi" envconfig:"PDF_DPI"`
}

// SQLConfig configures query generation.
type SQLConfig struct {
	MaxRetries int `json:"maxRetries" envconfig:"SQL_MAX_RETRIES"`
}

// WebSearchConfig configures confidence-score evidence search.
type WebSearchConfig struct {
	MaxResults int `json:"maxResults" envconfig:"WEB_SEARCH_MAX_RESULTS"`
}

// StorageConfig groups database paths.
type StorageConfig struct {
	RulesDB  string `json:"rulesDb" envconfig:"RULES_DB"`
	ClaimsDB string `json:"claimsDb" envconfig:"CLAIMS_DB"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			OpenAIAPIBase:  "https://api.openai.com/v1",
			OpenAIModel:    "gpt-4o",
			AnthropicModel: "claude-sonnet-4-20250514",
			MaxTokens:      4096,
			Temperature:    0.1,
		},
		OCR: OCRConfig{
			Endpoint:       "http://localhost:8866/predict/ocr_system",
			TimeoutSeconds: 60,
		},
		PDF: PDFConfig{DPI: 300},
		SQL: SQLConfig{MaxRetries: 3},
		WebSearch: WebSearchConfig{
			MaxResults: 5,
		},
		Storage: StorageConfig{
			RulesDB:  "rules.db",
			ClaimsDB: "claims.db",
		},
		LogLevel: "info",
	}
}
