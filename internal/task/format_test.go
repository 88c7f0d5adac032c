package task

import (
	"strings"
	"testing"

	"github.com/zulandar/switchboard/internal/enrich"
)

func baseContext() Context {
	return Context{
		MessageText: "the deploy is broken again",
		MessageTS:   "1700000000.000100",
		AuthorName:  "alice",
		ChannelName: "incidents",
		Permalink:   "https://acme.slack.com/archives/C01/p1700000000000100",
	}
}

func TestFormatDescription_Deterministic(t *testing.T) {
	c := baseContext()
	a := FormatDescription(c)
	b := FormatDescription(c)
	if a != b {
		t.Error("FormatDescription not deterministic for identical input")
	}
}

func TestFormatDescription_IncludesCoreFields(t *testing.T) {
	got := FormatDescription(baseContext())

	for _, want := range []string{
		"**From:** alice",
		"**Channel:** #incidents",
		"**Posted:**",
		"https://acme.slack.com/archives/C01/p1700000000000100",
		"the deploy is broken again",
		provenanceFooter,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("description missing %q:\n%s", want, got)
		}
	}
}

func TestFormatDescription_UnknownFallbacks(t *testing.T) {
	c := baseContext()
	c.AuthorName = ""
	c.ChannelName = ""
	got := FormatDescription(c)

	if !strings.Contains(got, "**From:** Unknown") {
		t.Errorf("missing author fallback:\n%s", got)
	}
	if !strings.Contains(got, "**Channel:** #Unknown") {
		t.Errorf("missing channel fallback:\n%s", got)
	}
}

func TestFormatDescription_NoPermalink(t *testing.T) {
	c := baseContext()
	c.Permalink = ""
	if strings.Contains(FormatDescription(c), "**Link:**") {
		t.Error("link line present without permalink")
	}
}

func TestFormatDescription_ThreadSection(t *testing.T) {
	c := baseContext()
	c.Thread = []enrich.Reply{
		{UserName: "alice", Text: "the deploy is broken again"},
		{UserName: "bob", Text: "rolling back"},
		{UserName: "carol", Text: "rolled back"},
	}
	got := FormatDescription(c)

	// Root is excluded from the count.
	if !strings.Contains(got, "**Thread (2 replies):**") {
		t.Errorf("missing thread header with root excluded:\n%s", got)
	}
	if !strings.Contains(got, "1. **bob:** rolling back") {
		t.Errorf("missing first reply:\n%s", got)
	}
	if !strings.Contains(got, "2. **carol:** rolled back") {
		t.Errorf("missing second reply:\n%s", got)
	}

	// Replies enumerate in order.
	if strings.Index(got, "**bob:**") > strings.Index(got, "**carol:**") {
		t.Error("replies out of order")
	}
}

func TestFormatDescription_SingleReplyNoun(t *testing.T) {
	c := baseContext()
	c.Thread = []enrich.Reply{
		{UserName: "alice", Text: "root"},
		{UserName: "bob", Text: "only reply"},
	}
	if got := FormatDescription(c); !strings.Contains(got, "**Thread (1 reply):**") {
		t.Errorf("want singular noun for one reply:\n%s", got)
	}
}

func TestFormatDescription_NoThreadSection(t *testing.T) {
	tests := []struct {
		name   string
		thread []enrich.Reply
	}{
		{"nil thread", nil},
		{"root only", []enrich.Reply{{UserName: "alice", Text: "root"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseContext()
			c.Thread = tt.thread
			if strings.Contains(FormatDescription(c), "**Thread (") {
				t.Error("thread section present without replies beyond root")
			}
		})
	}
}

func TestBuildTitle(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"short text unchanged", "fix the login bug", "fix the login bug"},
		{"empty text", "", "Slack message"},
		{
			"long text truncated",
			strings.Repeat("a", 120),
			strings.Repeat("a", 80) + "...",
		},
		{
			"exactly at bound unchanged",
			strings.Repeat("b", 80),
			strings.Repeat("b", 80),
		},
		{
			"multibyte runes counted as runes",
			strings.Repeat("é", 100),
			strings.Repeat("é", 80) + "...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildTitle(tt.text); got != tt.want {
				t.Errorf("BuildTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildPayload_Defaults(t *testing.T) {
	p := BuildPayload("fix the login bug", "desc")
	if p.Status != DefaultStatus {
		t.Errorf("Status = %q, want %q", p.Status, DefaultStatus)
	}
	if p.Priority != DefaultPriority {
		t.Errorf("Priority = %d, want %d", p.Priority, DefaultPriority)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "slack" {
		t.Errorf("Tags = %v, want %v", p.Tags, DefaultTags)
	}
}
