// internal/app/system/summarize/prompts.go
package summarize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/digesthub/internal/domain/models"
)

// ActivitySystemPrompt frames per-member activity summarization.
const ActivitySystemPrompt = "You are a helpful assistant. Your job is to summarize a number of different activities performed by a particular team member and provide a short, human readable summary of those activities. The purpose of this summary is to help other team members understand what this person has been doing in a particular time frame. Please keep the summary short but be sure to include the most important activities and information that would be helpful for other team members to know. You can use bullet points in your summary."

// EventSystemPrompt frames single-event summarization at ingest time.
const EventSystemPrompt = "You are a helpful assistant."

// RollupSystemPrompt frames the team-level digest composed from the
// individual member summaries.
const RollupSystemPrompt = "You are a helpful assistant. Your job is to combine activity summaries for the members of a team into one short, human readable team digest. Group the digest by member and keep each member's section brief. Members with no activity should be mentioned in a single line. The digest is sent to every member of the team, so write it for the whole team rather than any one person."

// EventUserPrompt renders the ingest-time prompt for one raw webhook
// event.
func EventUserPrompt(payload map[string]any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}
	return fmt.Sprintf("The following is a webhook event from GitHub that describes an activity that was performed by a user. Please summarize this activity in a human readable format as briefly as possible. Be sure to include the most important details that would be good for someone else on the user's team to know. If code is included, include what about the code was changed.\n\nActivity Data: %s", data), nil
}

// MemberUserPrompt renders the prompt for one member's activity window.
// Each record contributes its ingest-time one-line summary.
func MemberUserPrompt(memberName string, windowStart time.Time, records []models.ActivityRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Team member: %s\n", memberName)
	fmt.Fprintf(&b, "Activities since %s:\n\n", windowStart.UTC().Format(time.RFC1123))
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, rec.OccurredAt.UTC().Format(time.RFC1123), rec.Summary)
	}
	return b.String()
}

// Section is one member's contribution to the team rollup prompt.
type Section struct {
	MemberName string
	Summary    string
}

// RollupUserPrompt renders the prompt for the team digest from the
// per-member summaries. Every member appears: members without activity
// carry the no-activity line, and members whose gather or summarize
// step failed carry a could-not-be-retrieved placeholder.
func RollupUserPrompt(teamName string, sections []Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Team: %s\n\n", teamName)
	for _, s := range sections {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", s.MemberName, s.Summary)
	}
	return b.String()
}

// NoActivityLine is the section body for a member with no activity in
// the window.
const NoActivityLine = "No activity recorded in this period."
