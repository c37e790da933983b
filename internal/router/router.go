// Package router holds the pure message-handling logic: trigger detection,
// conversation serialization, prompt assembly and outbound sanitization.
package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shadehq/shade/internal/store"
)

// contextLimit caps how many history messages feed one prompt.
const contextLimit = 50

// fetchLimit bounds the history query before the in-memory cap is applied.
const fetchLimit = 500

// MatchesTrigger reports whether text contains the trigger phrase,
// case-insensitively. Regex metacharacters in the trigger are escaped, so
// "@Bot++" matches literally.
func MatchesTrigger(text, trigger string) bool {
	if trigger == "" {
		return false
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(trigger))
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// ShouldTrigger reports whether a message should start an agent run for the
// group. Groups that do not require a trigger always match.
func ShouldTrigger(text string, group *store.Group) bool {
	if !group.RequiresTrigger {
		return true
	}
	return MatchesTrigger(text, group.Trigger)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML-significant characters.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// FormatMessagesAsXML renders messages as a conversation document, one
// element per message with role and sender attributes. An empty list yields
// an empty well-formed container.
func FormatMessagesAsXML(messages []*store.Message) string {
	var b strings.Builder
	b.WriteString("<conversation>\n")
	for _, m := range messages {
		role := "user"
		if m.IsFromBot {
			role = "assistant"
		}
		fmt.Fprintf(&b, "  <message role=%q sender=%q>%s</message>\n",
			role, EscapeXML(m.SenderName), EscapeXML(m.Content))
	}
	b.WriteString("</conversation>")
	return b.String()
}

// BuildPromptForGroup assembles the prompt for one run: recent history
// (messages since the last bot reply, or all unprocessed if the bot never
// spoke), the triggering message, and instructions naming the assistant and
// group. Returns the prompt and the ids of the messages it consumed.
func BuildPromptForGroup(s *store.Store, group *store.Group, triggering *store.Message, assistantName string) (string, []string, error) {
	var history []*store.Message
	lastBot, err := s.LatestBotMessage(group.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load history: %w", err)
	}
	if lastBot != nil {
		history, err = s.ListMessagesAfter(group.ID, lastBot.CreatedAt, fetchLimit)
	} else {
		history, err = s.ListUnprocessedMessages(group.ID, fetchLimit)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) > contextLimit {
		history = history[len(history)-contextLimit:]
	}

	consumed := make([]string, 0, len(history))
	for _, m := range history {
		consumed = append(consumed, m.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, responding in the group %q.\n\n", assistantName, group.Name)
	b.WriteString("Recent conversation:\n")
	b.WriteString(FormatMessagesAsXML(history))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s says: %s\n\n", triggering.SenderName, triggering.Content)
	b.WriteString("Reply to the group. Wrap any private reasoning in <internal></internal> tags; it will not be delivered.")

	return b.String(), consumed, nil
}

var internalSpanRe = regexp.MustCompile(`(?s)<internal>.*?</internal>`)

// FormatOutboundMessage strips <internal> spans from raw engine output and
// trims surrounding whitespace. Content is otherwise untouched.
func FormatOutboundMessage(raw string) string {
	return strings.TrimSpace(internalSpanRe.ReplaceAllString(raw, ""))
}
