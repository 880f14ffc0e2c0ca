package relationship

import (
	"fmt"
	"strings"
	"time"

	"opiniongraph/internal/opinion"
	"opiniongraph/internal/textutil"
)

const contentExcerptLimit = 200

const relationshipSystemPrompt = `You analyze opinions extracted from podcast episodes and classify the relationships between them.

For every pair of opinions that are connected, output a record with:
- "source_id": the exact ID of the earlier opinion, copied verbatim from the input
- "target_id": the exact ID of the later opinion, copied verbatim from the input
- "relation_type": one of SAME_OPINION, RELATED, EVOLUTION, CONTRADICTION, NO_RELATION
- "notes": a short explanation of the connection
- "confidence": a number between 0 and 1

SAME_OPINION means both records express the same viewpoint. RELATED means they address the same topic without being identical. EVOLUTION means the later opinion is a changed version of the earlier one. CONTRADICTION means they take opposing positions. Use NO_RELATION for pairs you considered but found unconnected.

Respond with JSON only: {"relationships": [ ... ]}. Never invent IDs.`

// formatBatchPrompt renders one batch of opinions for classification.
func formatBatchPrompt(category string, batch []*opinion.Raw) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\nOpinions (%d, chronological):\n\n", category, len(batch))
	for _, op := range batch {
		fmt.Fprintf(&b, "ID: %s\n", op.ID)
		fmt.Fprintf(&b, "Episode: %s (%s, %s)\n", op.EpisodeID, op.EpisodeTitle, formatDate(op.EpisodeDate))
		fmt.Fprintf(&b, "Title: %s\n", op.Title)
		fmt.Fprintf(&b, "Description: %s\n", op.Description)
		if excerpt := textutil.Excerpt(op.Content, contentExcerptLimit); excerpt != "" {
			fmt.Fprintf(&b, "Content: %s\n", textutil.CollapseWhitespace(excerpt))
		}
		for _, speaker := range op.Speakers {
			fmt.Fprintf(&b, "Speaker: %s (%s) stance=%s\n", speaker.SpeakerName, speaker.SpeakerID, speaker.Stance)
		}
		b.WriteByte('\n')
	}
	b.WriteString("Classify the relationships between these opinions.")
	return b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown date"
	}
	return t.Format("2006-01-02")
}
