package composer

import (
	"fmt"
	"strings"

	"github.com/kalambet/sakha/internal/gateway"
)

// FollowUp is what the continuity prompt needs to know.
type FollowUp struct {
	PreviousReply   string
	PreviousMessage string
	Message         string
	KeyTopics       string
	Scripture       string
}

// FollowUpPrompt builds the single system message for a follow-up question.
func FollowUpPrompt(f FollowUp) []gateway.Message {
	var sb strings.Builder
	sb.WriteString("You are Krishna continuing a conversation. The user has asked a follow-up question that builds on your previous statement.\n\n")
	fmt.Fprintf(&sb, "Your previous message was: \"%s\"\n\n", f.PreviousReply)
	fmt.Fprintf(&sb, "The user's original message was: \"%s\"\n\n", f.PreviousMessage)
	fmt.Fprintf(&sb, "Now they've asked: \"%s\"\n\n", f.Message)
	fmt.Fprintf(&sb, "This is clearly a follow-up question about what you just shared. Key topics in your conversation: %s\n\n", f.KeyTopics)
	sb.WriteString("Respond naturally, maintaining continuity with your previous message. Elaborate with deeper wisdom while keeping your characteristic concise, friendly style.")
	if f.Scripture != "" {
		sb.WriteString("\n\n" + f.Scripture)
	}
	return []gateway.Message{{Role: gateway.RoleSystem, Content: sb.String()}}
}

// Correction is what the acknowledge-and-reconfirm prompt needs to know.
type Correction struct {
	Topic         string
	PreviousReply string
	Message       string
	// EarlierMessages are recent user turns, newest first.
	EarlierMessages []string
}

// CorrectionPrompt builds the single system message for a correction.
func CorrectionPrompt(c Correction) []gateway.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The user is correcting you about %s. You incorrectly understood something they said.\n\n", c.Topic)
	fmt.Fprintf(&sb, "Your previous message: \"%s\"\n\n", c.PreviousReply)
	fmt.Fprintf(&sb, "Their correction: \"%s\"\n\n", c.Message)
	fmt.Fprintf(&sb, "Earlier context from user: %s\n\n", strings.Join(c.EarlierMessages, " / "))
	sb.WriteString(`Respond with:
1. A brief acknowledgment of the correction
2. Your corrected understanding
3. A follow-up question to make sure you now understand correctly

Be humble, warm, and conversational, but brief as always.`)
	return []gateway.Message{{Role: gateway.RoleSystem, Content: sb.String()}}
}
