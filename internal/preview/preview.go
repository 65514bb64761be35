// Package preview renders notification batches to a terminal.
package preview

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"NewsRadar/internal/domain"
)

// Palette
var (
	BorderColor    = lipgloss.Color("#374151")
	TextColor      = lipgloss.Color("#F9FAFB")
	TextMutedColor = lipgloss.Color("#9CA3AF")
	LinkColor      = lipgloss.Color("#60A5FA")
)

// Styles
var (
	ContentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor)

	BatchStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor)

	LinkStyle = lipgloss.NewStyle().
			Foreground(LinkColor).
			Underline(true)

	FieldNameStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	FooterStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(TextMutedColor)
)

// Renderer draws batches as bordered cards; the left border takes the
// block colour the way the chat client shows it.
type Renderer struct {
	Width int
}

// Write renders every batch of a topic to w.
func (r Renderer) Write(w io.Writer, batches []domain.NotificationBatch) error {
	for _, nb := range batches {
		if _, err := io.WriteString(w, r.Batch(nb)+"\n"); err != nil {
			return fmt.Errorf("write preview: %w", err)
		}
	}
	return nil
}

// Batch renders one delivery call.
func (r Renderer) Batch(nb domain.NotificationBatch) string {
	parts := []string{
		BatchStyle.Render(fmt.Sprintf("── %s call %d/%d · %d item(s)", nb.Topic, nb.Sequence, nb.Total, len(nb.Items))),
	}
	if nb.Content != "" {
		parts = append(parts, ContentStyle.Render(nb.Content))
	}
	for _, blk := range nb.Blocks() {
		parts = append(parts, r.Block(blk))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Block renders one card.
func (r Renderer) Block(blk domain.Block) string {
	width := r.Width
	if width <= 0 {
		width = 80
	}

	var lines []string
	lines = append(lines, TitleStyle.Render(blk.Title))
	if blk.URL != "" {
		lines = append(lines, LinkStyle.Render(blk.URL))
	}
	if blk.Description != "" {
		lines = append(lines, blk.Description)
	}
	if len(blk.Fields) > 0 {
		var fields []string
		for _, f := range blk.Fields {
			fields = append(fields, FieldNameStyle.Render(f.Name+":")+" "+f.Value)
		}
		lines = append(lines, strings.Join(fields, "  "))
	}
	if blk.Footer != "" {
		lines = append(lines, FooterStyle.Render(blk.Footer))
	}

	card := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color(fmt.Sprintf("#%06X", blk.Color&0xFFFFFF))).
		Padding(0, 1).
		Width(width)
	return card.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
