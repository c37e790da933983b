// Package security builds sanitized environments for agent runs and strips
// secret values from text before it crosses the trust boundary.
package security

import (
	"fmt"
	"os"
	"strings"
)

// envAllowList names the variables an agent run is permitted to inherit.
var envAllowList = []string{
	"ANTHROPIC_API_KEY",
}

// sensitiveVars are never passed through and are redacted from output text.
var sensitiveVars = []string{
	"ANTHROPIC_API_KEY",
	"SLACK_BOT_TOKEN",
	"SLACK_APP_TOKEN",
	"DATABASE_URL",
	"SHADE_ANTHROPIC_API_KEY",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"GITHUB_TOKEN",
	"OPENAI_API_KEY",
}

// BuildAgentEnv returns an environment containing only allow-listed
// variables from the process environment plus the caller's overrides.
// Overrides take precedence.
func BuildAgentEnv(overrides map[string]string) map[string]string {
	env := make(map[string]string, len(envAllowList)+len(overrides))
	for _, name := range envAllowList {
		if v := os.Getenv(name); v != "" {
			env[name] = v
		}
	}
	for k, v := range overrides {
		env[k] = v
	}
	return env
}

// SensitiveVars returns the tracked sensitive variable names.
func SensitiveVars() []string {
	out := make([]string, len(sensitiveVars))
	copy(out, sensitiveVars)
	return out
}

// UnsetStatements renders the sensitive variable list as shell unset
// statements, usable as a pre-execution hook.
func UnsetStatements() string {
	var b strings.Builder
	for _, name := range sensitiveVars {
		fmt.Fprintf(&b, "unset %s\n", name)
	}
	return b.String()
}

// RedactSecrets replaces every occurrence of a currently set sensitive
// variable's value with a labeled placeholder. Values of 4 characters or
// fewer are skipped so trivial substrings are not mass-redacted.
func RedactSecrets(text string) string {
	for _, name := range sensitiveVars {
		value := os.Getenv(name)
		if len(value) <= 4 {
			continue
		}
		text = strings.ReplaceAll(text, value, "[REDACTED:"+name+"]")
	}
	return text
}
