package notes

import (
	"fmt"
	"strings"
)

// RenderMarkdown はノートをMarkdownに変換する
func RenderMarkdown(n *Notes) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", n.Title))
	board := n.BoardName
	if board == "" {
		board = n.Request.Board
	}
	sb.WriteString(fmt.Sprintf("*Class %d · %s · %s*\n\n", n.Request.Class, board, n.Request.Subject))

	if n.Overview != "" {
		sb.WriteString("## Overview\n\n")
		sb.WriteString(n.Overview)
		sb.WriteString("\n\n")
	}

	for i, page := range n.Topics {
		sb.WriteString(fmt.Sprintf("## %d. %s\n\n", i+1, page.Topic))
		if page.Definition != "" {
			sb.WriteString(fmt.Sprintf("**Definition.** %s\n\n", page.Definition))
		}
		if page.Explanation != "" {
			sb.WriteString(page.Explanation)
			sb.WriteString("\n\n")
		}
		if len(page.KeyPoints) > 0 {
			sb.WriteString("### Key points\n\n")
			for _, kp := range page.KeyPoints {
				sb.WriteString("- " + kp + "\n")
			}
			sb.WriteString("\n")
		}
		if len(page.Examples) > 0 {
			sb.WriteString("### Examples\n\n")
			for j, ex := range page.Examples {
				title := ex.Title
				if title == "" {
					title = fmt.Sprintf("Example %d", j+1)
				}
				sb.WriteString(fmt.Sprintf("**%s.** %s\n\n", title, ex.Problem))
				sb.WriteString(fmt.Sprintf("*Solution:* %s\n\n", ex.Solution))
			}
		}
		if len(page.Questions) > 0 {
			sb.WriteString("### Practice questions\n\n")
			for j, q := range page.Questions {
				sb.WriteString(fmt.Sprintf("%d. (%s) %s\n", j+1, q.Kind, q.Prompt))
				for k, opt := range q.Options {
					sb.WriteString(fmt.Sprintf("   %c) %s\n", 'a'+k, opt))
				}
			}
			sb.WriteString("\n<details><summary>Answers</summary>\n\n")
			for j, q := range page.Questions {
				sb.WriteString(fmt.Sprintf("%d. %s\n", j+1, q.Answer))
			}
			sb.WriteString("\n</details>\n\n")
		}
		if len(page.Sources) > 0 {
			sb.WriteString("*Sources:* ")
			sb.WriteString(formatReferences(page.Sources))
			sb.WriteString("\n\n")
		}
	}

	if n.Summary != "" {
		sb.WriteString("## Summary\n\n")
		sb.WriteString(n.Summary)
		sb.WriteString("\n\n")
	}

	if len(n.KeyTerms) > 0 {
		sb.WriteString("## Key terms\n\n")
		sb.WriteString("| Term | Meaning |\n|---|---|\n")
		for _, kt := range n.KeyTerms {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", escapeTableCell(kt.Term), escapeTableCell(kt.Meaning)))
		}
		sb.WriteString("\n")
	}

	if len(n.References) > 0 {
		sb.WriteString("## References\n\n")
		for _, ref := range n.References {
			sb.WriteString("- " + formatReference(ref) + "\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func formatReferences(refs []Reference) string {
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		parts = append(parts, formatReference(ref))
	}
	return strings.Join(parts, ", ")
}

func formatReference(ref Reference) string {
	if ref.URL == "" {
		return ref.Title
	}
	if ref.Title == "" {
		return ref.URL
	}
	return fmt.Sprintf("[%s](%s)", ref.Title, ref.URL)
}

func escapeTableCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}
