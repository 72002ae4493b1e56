package export

import (
	"fmt"
	"strings"
	"time"
)

// GenerateMarkdown creates a report of the map: a summary, a mermaid graph
// of the connections and one section per item.
func GenerateMarkdown(doc Document) string {
	var sb strings.Builder
	snap := doc.Snapshot

	title := doc.Title
	if title == "" {
		title = "Node map"
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format(time.RFC1123)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Items**: %d\n", len(snap.Items)))
	sb.WriteString(fmt.Sprintf("- **Connections**: %d\n", len(snap.Edges)))
	if s := doc.Stats; s != nil {
		sb.WriteString(fmt.Sprintf("- **Clusters**: %d (largest %d)\n", s.Components, s.LargestComponent))
		sb.WriteString(fmt.Sprintf("- **Isolated**: %d\n", len(s.Isolated)))
		sb.WriteString(fmt.Sprintf("- **Mean connection length**: %.1f\n", s.MeanEdgeLength))
		if len(s.Hubs) > 0 {
			names := make([]string, len(s.Hubs))
			for i, h := range s.Hubs {
				names[i] = h.Title
			}
			sb.WriteString(fmt.Sprintf("- **Hubs**: %s\n", strings.Join(names, ", ")))
		}
	}
	if snap.Hash != "" {
		sb.WriteString(fmt.Sprintf("- **Data hash**: `%s`\n", shortHash(snap.Hash)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Connections\n\n")
	sb.WriteString("```mermaid\ngraph LR\n")
	for i, it := range snap.Items {
		sb.WriteString(fmt.Sprintf("    n%d[\"%s\"]\n", i, mermaidLabel(it.Title)))
	}
	if len(snap.Edges) == 0 {
		sb.WriteString("    NoConnections[No connections]\n")
	}
	for _, e := range snap.Edges {
		if e.Validate(len(snap.Items)) != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("    n%d --> n%d\n", e.From, e.To))
	}
	sb.WriteString("```\n\n---\n\n")

	for i, it := range snap.Items {
		sb.WriteString(fmt.Sprintf("## %s\n\n", it.Title))
		if it.ImageSource != "" {
			sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", it.Title, it.ImageSource))
		}
		if it.Description != "" {
			sb.WriteString(it.Description + "\n\n")
		}
		var near []string
		for _, e := range snap.Edges {
			if e.From == i && e.To < len(snap.Items) {
				near = append(near, snap.Items[e.To].Title)
			}
		}
		if len(near) > 0 {
			sb.WriteString(fmt.Sprintf("Nearest: %s\n\n", strings.Join(near, ", ")))
		}
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

// mermaidLabel strips characters mermaid treats as syntax.
func mermaidLabel(s string) string {
	s = strings.NewReplacer("\"", "'", "[", "", "]", "", "(", "", ")", "").Replace(s)
	if r := []rune(s); len(r) > 30 {
		s = string(r[:27]) + "..."
	}
	return s
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
