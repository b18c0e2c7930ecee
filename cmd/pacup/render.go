// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"pacup-cli/internal/pacscript"
	"pacup-cli/internal/repology"
	"pacup-cli/internal/version"
)

// statusStyle maps a classification to its display style.
func statusStyle(s version.Status) lipgloss.Style {
	switch s {
	case version.StatusOutdated:
		return ErrorStyle
	case version.StatusUpdated:
		return SuccessStyle
	case version.StatusNewer:
		return PkgStyle
	default:
		return WarningStyle
	}
}

// renderStatusTable renders one bucket of classified pacscripts.
func renderStatusTable(status version.Status, results []*updateResult) string {
	if len(results) == 0 {
		return ""
	}

	style := statusStyle(status)
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.pacscript.PkgName,
			r.pacscript.Version.Current,
			r.pacscript.Version.Latest.String(),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(style).
		Headers("Pacscript", "Current", "Latest").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			return lipgloss.NewStyle()
		})

	return style.Bold(true).Render(status.String()) + "\n" + t.Render() + "\n"
}

// renderRepologyView renders the aggregator's filtered candidate records for
// one project, shown with --show-repology.
func renderRepologyView(project string, filters repology.Criteria, filtrate []repology.Package, selected string) string {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render("repology: "+project) + "\n")

	pairs := make([]string, 0, len(filters))
	for _, f := range filters {
		pairs = append(pairs, f.Key+"="+f.Value)
	}
	if len(pairs) > 0 {
		sb.WriteString(SubtitleStyle.Render("filters: "+strings.Join(pairs, " ")) + "\n")
	}

	rows := make([][]string, 0, len(filtrate))
	for _, p := range filtrate {
		rows = append(rows, []string{p.Repo(), p.Version()})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtitleStyle).
		Headers("Repo", "Version").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return SubtitleStyle.Bold(true)
			}
			if col == 1 && row >= 0 && row < len(filtrate) && filtrate[row].Version() == selected {
				return SuccessStyle
			}
			return lipgloss.NewStyle()
		})

	sb.WriteString(t.Render() + "\n")
	return sb.String()
}

// renderReleaseNotes renders the collected release note bodies as terminal
// markdown. Tags are shown newest-last so the most relevant notes end up
// closest to the prompt.
func renderReleaseNotes(notes map[string]string) string {
	if len(notes) == 0 {
		return ""
	}

	tags := make([]string, 0, len(notes))
	for tag := range notes {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var md strings.Builder
	for _, tag := range tags {
		fmt.Fprintf(&md, "# %s\n\n%s\n\n", tag, notes[tag])
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return md.String()
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		return md.String()
	}
	return out
}

// renderDiff previews the two rewritten lines of a pacscript update.
func renderDiff(p *pacscript.Pacscript, edited []string) string {
	var sb strings.Builder
	for _, line := range []int{p.Version.LineNumber, p.HashLine} {
		if line < 0 || line >= len(edited) {
			continue
		}
		sb.WriteString(diffRemovedStyle.Render("- "+p.Lines[line]) + "\n")
		sb.WriteString(diffAddedStyle.Render("+ "+edited[line]) + "\n")
	}
	return sb.String()
}

// renderSummary renders the final success and failure panels.
func renderSummary(succeeded []*updateResult, failed []*updateFailure) string {
	var sb strings.Builder

	if len(succeeded) > 0 {
		rows := make([][]string, 0, len(succeeded))
		for _, r := range succeeded {
			rows = append(rows, []string{
				pacscript.Stem(r.pacscript.Path),
				r.pacscript.Version.Current + " => " + r.pacscript.Version.Latest.String(),
			})
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(SuccessStyle).
			Headers("Pacscript", "Update").
			Rows(rows...)
		sb.WriteString(SuccessStyle.Bold(true).Render("Success") + "\n" + t.Render() + "\n")
	}

	if len(failed) > 0 {
		rows := make([][]string, 0, len(failed))
		for _, f := range failed {
			update := ""
			if f.result.pacscript != nil {
				update = f.result.pacscript.Version.Current + " => " + f.result.pacscript.Version.Latest.String()
			}
			rows = append(rows, []string{f.stem(), update, f.reason})
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(ErrorStyle).
			Headers("Pacscript", "Update", "Reason").
			Rows(rows...)
		sb.WriteString(ErrorStyle.Render("Failures") + "\n" + t.Render() + "\n")
	}

	return sb.String()
}
