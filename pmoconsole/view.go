package pmoconsole

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoplayer"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmorenderer"
)

var (
	accent      = lipgloss.Color("39")
	titleStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(accent)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

const barWidth = 30

// RenderRenderers affiche la liste numérotée ; current est marqué.
func RenderRenderers(list []*pmorenderer.Renderer, current *pmorenderer.Renderer) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📡 Renderers"))
	for i, r := range list {
		b.WriteString("\n")
		line := fmt.Sprintf("%2d  %s", i, r.Name())
		if !r.IsLocal() && !r.CanPause() {
			line += mutedStyle.Render("  (no pause)")
		}
		if r.Equal(current) {
			b.WriteString(activeStyle.Render("▶ " + line))
		} else {
			b.WriteString("  " + line)
		}
	}
	return boxStyle.Render(b.String())
}

// RenderStatus affiche le statut, le média et la progression.
func RenderStatus(info pmoplayer.Info, position, duration int64) string {
	var b strings.Builder

	status := info.Status.String()
	switch info.Status {
	case pmoplayer.StatusError:
		status = errorStyle.Render(status)
	case pmoplayer.StatusPlaying:
		status = activeStyle.Render(status)
	}
	b.WriteString(titleStyle.Render("🎵 "+status) + mutedStyle.Render(" @ "+info.Renderer.Name()))

	if info.Media == nil {
		b.WriteString("\n" + mutedStyle.Render("Nothing playing"))
		return boxStyle.Render(b.String())
	}

	meta := info.Media.Metadata()
	addLine := func(label, value string) {
		if value != "" {
			b.WriteString("\n" + labelStyle.Render(label) + " " + value)
		}
	}
	title := meta.Title
	if title == "" {
		title = info.Media.Identifier()
	}
	addLine("title ", title)
	addLine("artist", meta.Artist)
	addLine("album ", meta.Album)

	b.WriteString("\n" + progressBar(position, duration, barWidth) + " " +
		formatTime(position) + " / " + formatTime(duration))
	return boxStyle.Render(b.String())
}

func progressBar(position, duration int64, width int) string {
	filled := 0
	if duration > 0 {
		filled = int(min(position, duration) * int64(width) / duration)
	}
	filled = max(0, filled)
	return activeStyle.Render(strings.Repeat("━", filled)) + mutedStyle.Render(strings.Repeat("─", width-filled))
}

// formatTime donne m:ss, ou h:mm:ss au delà d'une heure.
func formatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	sec := ms / 1000
	h, m, s := sec/3600, (sec/60)%60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
