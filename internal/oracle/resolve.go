package oracle

import (
	"os"
	"strings"
)

// DefaultModel is used when the configured model name is blank.
const DefaultModel = "llama3"

// Provider names the backend family a model id routes to.
type Provider string

const (
	ProviderOllama      Provider = "ollama"
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderGemini      Provider = "gemini"
	ProviderGoogle      Provider = "google"
	ProviderPassthrough Provider = ""
)

// ProviderInfo describes how a provider is reached and authenticated.
type ProviderInfo struct {
	Name        Provider
	KeyEnv      []string // env vars populated with the API key
	BaseEnv     string   // env var populated with the base URL, if any
	DefaultBase string
}

var providers = map[Provider]ProviderInfo{
	ProviderOllama: {
		Name:        ProviderOllama,
		DefaultBase: "http://localhost:11434",
	},
	ProviderOpenAI: {
		Name:        ProviderOpenAI,
		KeyEnv:      []string{"OPENAI_API_KEY"},
		BaseEnv:     "OPENAI_API_BASE",
		DefaultBase: "https://api.openai.com/v1",
	},
	ProviderAnthropic: {
		Name:        ProviderAnthropic,
		KeyEnv:      []string{"ANTHROPIC_API_KEY"},
		DefaultBase: "https://api.anthropic.com",
	},
	ProviderGemini: {
		Name:        ProviderGemini,
		KeyEnv:      []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		DefaultBase: "https://generativelanguage.googleapis.com/v1beta",
	},
	ProviderGoogle: {
		Name:        ProviderGoogle,
		KeyEnv:      []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		DefaultBase: "https://generativelanguage.googleapis.com/v1beta",
	},
}

// LookupProvider returns the provider table entry, if the provider is known.
func LookupProvider(p Provider) (ProviderInfo, bool) {
	info, ok := providers[p]
	return info, ok
}

// Resolution is the normalised form of a user-entered model name.
type Resolution struct {
	ModelID  string   // provider-qualified id, e.g. "anthropic/claude-3-5-sonnet-latest"
	Provider Provider // text before the first "/", empty for passthrough ids
	Model    string   // model name with the provider prefix removed
}

// rule maps a bare model name to a provider when it matches.
type rule struct {
	provider Provider
	match    func(model string, local bool) bool
}

// rules are evaluated in order after the explicit provider/model and blank checks.
var rules = []rule{
	{ProviderOllama, func(_ string, local bool) bool { return local }},
	{ProviderOpenAI, func(m string, _ bool) bool {
		return strings.HasPrefix(m, "gpt-") || strings.HasPrefix(m, "o1-") || strings.HasPrefix(m, "o3-")
	}},
	{ProviderAnthropic, func(m string, _ bool) bool { return strings.HasPrefix(m, "claude-") }},
	{ProviderGemini, func(m string, _ bool) bool { return strings.HasPrefix(m, "gemini") }},
}

var localHosts = []string{"localhost", "127.0.0.1", "::1"}

// IsLocal reports whether a base URL points at the local machine.
func IsLocal(baseURL string) bool {
	bu := strings.TrimSpace(baseURL)
	if bu == "" {
		return false
	}
	for _, h := range localHosts {
		if strings.Contains(bu, h) {
			return true
		}
	}
	return false
}

// Normalize turns a user-entered model name into a provider-qualified id.
//
//	llama3 + http://localhost:11434  -> ollama/llama3
//	gpt-4o                           -> openai/gpt-4o
//	claude-3-5-sonnet-latest         -> anthropic/claude-3-5-sonnet-latest
//	gemini-1.5-pro                   -> gemini/gemini-1.5-pro
//	models/gemini-1.5-pro            -> gemini/gemini-1.5-pro
//	gemini/gemini-1.5-flash          -> gemini/gemini-1.5-flash
func Normalize(model, baseURL string) string {
	mn := strings.TrimSpace(model)
	if mn == "" {
		mn = DefaultModel
	}

	if strings.Contains(mn, "/") {
		if strings.HasPrefix(mn, "models/") {
			return "gemini/" + strings.TrimPrefix(mn, "models/")
		}
		return mn
	}

	local := IsLocal(baseURL)
	for _, r := range rules {
		if r.match(mn, local) {
			return string(r.provider) + "/" + mn
		}
	}
	return mn
}

// Resolve normalises the model name in s and splits off the provider.
func Resolve(s Settings) Resolution {
	id := Normalize(s.Model, s.BaseURL)
	res := Resolution{ModelID: id, Model: id}
	if i := strings.Index(id, "/"); i >= 0 {
		res.Provider = Provider(strings.ToLower(id[:i]))
		res.Model = id[i+1:]
	}
	return res
}

// ApplyCredentials exports the API key (and, for OpenAI, the base URL) into
// the environment variables the provider's tooling expects. A blank key is a no-op.
func ApplyCredentials(p Provider, apiKey, baseURL string) {
	if apiKey == "" {
		return
	}
	info, ok := providers[p]
	if !ok {
		return
	}
	for _, env := range info.KeyEnv {
		os.Setenv(env, apiKey)
	}
	if info.BaseEnv != "" && strings.TrimSpace(baseURL) != "" {
		os.Setenv(info.BaseEnv, strings.TrimSpace(baseURL))
	}
}

// apiKey returns the configured key, falling back to the provider's env vars.
func apiKey(info ProviderInfo, configured string) string {
	if configured != "" {
		return configured
	}
	for _, env := range info.KeyEnv {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return ""
}
