// Package config loads the service configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the summon service.
type Config struct {
	// Server settings
	Port int

	// Platform selection: "github" or "gitlab".
	Platform string

	// GitHub auth: either a token or App credentials.
	GitHubToken         string
	GitHubAppID         string
	GitHubPrivateKey    string
	GitHubWebhookSecret string

	// GitLab auth.
	GitLabToken         string
	GitLabBaseURL       string
	GitLabWebhookSecret string

	// Agent settings
	ClaudeAPIKey    string
	ClaudeModel     string
	AgentName       string
	BotLogin        string
	DisallowedTools string

	// Trigger settings
	TriggerPhrase   string
	AssigneeTrigger string
	LabelTrigger    string

	// DirectPrompt bypasses trigger detection entirely and becomes the
	// task statement for every event this instance handles.
	DirectPrompt string

	// Branch settings
	BranchPrefix  string
	BaseBranch    string
	CommitSigning bool

	// Comment settings
	StickyComment bool

	// NotifyWebhookURL receives fire-and-forget run completion events.
	NotifyWebhookURL string

	// PublicURL is the externally reachable base URL of this service. When
	// set, tracking comments link to the run's status page under it.
	PublicURL string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnvInt("PORT", 8000),
		Platform: getEnv("SCM_PLATFORM", "github"),

		GitHubToken:         os.Getenv("GITHUB_TOKEN"),
		GitHubAppID:         os.Getenv("GITHUB_APP_ID"),
		GitHubPrivateKey:    normalizePrivateKey(os.Getenv("GITHUB_PRIVATE_KEY")),
		GitHubWebhookSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),

		GitLabToken:         os.Getenv("GITLAB_TOKEN"),
		GitLabBaseURL:       getEnv("GITLAB_BASE_URL", "https://gitlab.com"),
		GitLabWebhookSecret: os.Getenv("GITLAB_WEBHOOK_SECRET"),

		ClaudeAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:     getEnv("CLAUDE_MODEL", "claude-sonnet-4-5"),
		AgentName:       getEnv("AGENT_NAME", "Claude"),
		BotLogin:        os.Getenv("BOT_LOGIN"),
		DisallowedTools: getEnv("DISALLOWED_TOOLS", ""),

		TriggerPhrase:   getEnv("TRIGGER_PHRASE", "@claude"),
		AssigneeTrigger: os.Getenv("ASSIGNEE_TRIGGER"),
		LabelTrigger:    os.Getenv("LABEL_TRIGGER"),
		DirectPrompt:    os.Getenv("DIRECT_PROMPT"),

		BranchPrefix:  getEnv("BRANCH_PREFIX", "claude/"),
		BaseBranch:    os.Getenv("BASE_BRANCH"),
		CommitSigning: getEnvBool("COMMIT_SIGNING", false),

		StickyComment: getEnvBool("STICKY_COMMENT", false),

		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		PublicURL:        strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalizePrivateKey accepts keys pasted with quotes or escaped newlines.
func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

func (c *Config) validate() error {
	switch c.Platform {
	case "github":
		if c.GitHubToken == "" && (c.GitHubAppID == "" || c.GitHubPrivateKey == "") {
			return fmt.Errorf("GITHUB_TOKEN or GITHUB_APP_ID + GITHUB_PRIVATE_KEY is required")
		}
		if c.GitHubWebhookSecret == "" {
			return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
		}
	case "gitlab":
		if c.GitLabToken == "" {
			return fmt.Errorf("GITLAB_TOKEN is required")
		}
		if c.GitLabWebhookSecret == "" {
			return fmt.Errorf("GITLAB_WEBHOOK_SECRET is required")
		}
	default:
		return fmt.Errorf("invalid platform: %s (must be 'github' or 'gitlab')", c.Platform)
	}

	if c.ClaudeAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.TriggerPhrase == "" {
		return fmt.Errorf("TRIGGER_PHRASE cannot be empty")
	}
	return nil
}

// getEnv gets environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
