package notes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	page := goodPage("Speed")
	page.KeyPoints = []string{"Speed is scalar"}
	page.Questions = []Question{{Kind: QuestionMCQ, Prompt: "Unit of speed?", Options: []string{"m/s", "kg"}, Answer: "m/s"}}

	md := RenderMarkdown(&Notes{
		Title:      "Science: Motion (Class 9, CBSE)",
		Request:    testRequest(),
		BoardName:  "Central Board of Secondary Education",
		Overview:   "Overview text.",
		Topics:     []*TopicPage{page},
		Summary:    "Summary text.",
		KeyTerms:   []KeyTerm{{Term: "speed", Meaning: "a | b"}},
		References: []Reference{{Title: "src", URL: "mock://src"}, {URL: "mock://bare"}},
	})

	assert.Contains(t, md, "# Science: Motion (Class 9, CBSE)\n")
	assert.Contains(t, md, "Central Board of Secondary Education")
	assert.Contains(t, md, "## 1. Speed")
	assert.Contains(t, md, "**Definition.** A short definition.")
	assert.Contains(t, md, "- Speed is scalar")
	assert.Contains(t, md, "1. (mcq) Unit of speed?")
	assert.Contains(t, md, "   a) m/s")
	assert.Contains(t, md, "   b) kg")
	assert.Contains(t, md, "| speed | a \\| b |")
	assert.Contains(t, md, "- [src](mock://src)")
	assert.Contains(t, md, "- mock://bare")
}

func TestRenderMarkdown_MinimalNotes(t *testing.T) {
	md := RenderMarkdown(&Notes{Title: "T", Request: testRequest()})
	assert.Contains(t, md, "*Class 9 · CBSE · Science*")
	assert.NotContains(t, md, "## Overview")
	assert.NotContains(t, md, "## References")
}
