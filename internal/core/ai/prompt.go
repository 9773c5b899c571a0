package ai

import (
	"fmt"
	"strings"

	"github.com/critic-sh/critic/internal/core/comment"
)

const promptHeader = `You are helping consolidate code review comments into a single clear set of instructions for a coding agent.

Rules:
1. Merge overlapping or duplicate comments into one instruction.
2. Keep every file path and line reference from the input.
3. Preserve the reviewer's intent exactly. Do not add requirements they did not ask for.
4. Order instructions by file, then by line.
5. Respond with ONLY the consolidated instructions. No preamble, no commentary.

Review comments:`

// BuildPrompt renders the consolidation prompt. Each comment contributes its
// file path, optional line anchor, and content.
func BuildPrompt(comments []comment.Comment) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\n")

	for i, c := range comments {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(promptLocation(c))
		b.WriteString("\n")
		b.WriteString(c.Content)
	}

	return b.String()
}

func promptLocation(c comment.Comment) string {
	if c.LineStart == nil {
		return c.FilePath
	}
	return fmt.Sprintf("%s:%d", c.FilePath, *c.LineStart)
}
