package task

import (
	"fmt"
	"strings"

	"github.com/zulandar/switchboard/internal/enrich"
)

// descriptionTimeLayout renders the source message timestamp for humans.
const descriptionTimeLayout = "Jan 2, 2006 3:04 PM MST"

// provenanceFooter identifies the integration as the task's source.
const provenanceFooter = "_Created from Slack by Switchboard_"

// Context is the enriched input to FormatDescription.
type Context struct {
	MessageText string
	MessageTS   string
	AuthorName  string
	ChannelName string
	Permalink   string
	Thread      []enrich.Reply
}

// FormatDescription renders enriched context into a task description. Pure
// and deterministic: identical input yields byte-identical output. A thread
// section is appended only when the thread holds replies beyond the root.
func FormatDescription(c Context) string {
	author := c.AuthorName
	if author == "" {
		author = "Unknown"
	}
	channel := c.ChannelName
	if channel == "" {
		channel = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**From:** %s\n", author)
	fmt.Fprintf(&b, "**Channel:** #%s\n", channel)
	fmt.Fprintf(&b, "**Posted:** %s\n", enrich.ParseTimestamp(c.MessageTS).UTC().Format(descriptionTimeLayout))
	if c.Permalink != "" {
		fmt.Fprintf(&b, "**Link:** %s\n", c.Permalink)
	}
	b.WriteString("\n")
	b.WriteString(c.MessageText)
	b.WriteString("\n")

	// Replies beyond the root.
	if len(c.Thread) > 1 {
		replies := c.Thread[1:]
		noun := "replies"
		if len(replies) == 1 {
			noun = "reply"
		}
		fmt.Fprintf(&b, "\n---\n**Thread (%d %s):**\n", len(replies), noun)
		for i, r := range replies {
			name := r.UserName
			if name == "" {
				name = "Unknown"
			}
			fmt.Fprintf(&b, "%d. **%s:** %s\n", i+1, name, r.Text)
		}
	}

	b.WriteString("\n---\n")
	b.WriteString(provenanceFooter)
	b.WriteString("\n")
	return b.String()
}
