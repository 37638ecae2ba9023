package resultconsole

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ppesuite/internal/domain/compliance"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	cardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func statusStyle(status compliance.Status) lipgloss.Style {
	switch status {
	case compliance.StatusNonCompliant:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	case compliance.StatusCompliant:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	default:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	}
}

// Render draws the result card shown after an upload.
func Render(result compliance.DisplayResult) string {
	if result.Phase == compliance.PhaseFailed {
		return cardStyle.Render(errorStyle.Render("Correlation failed; please retry.") + "\n" +
			field("Image", result.SourceImageKey))
	}

	lines := []string{statusStyle(result.Status).Render(result.Headline())}
	if result.EmployeeID != nil {
		lines = append(lines,
			field("Employee", fmt.Sprintf("%s (%s)", result.DisplayName, *result.EmployeeID)),
			field("Department", result.Department),
			field("Site", result.Site),
			field("This image", fmt.Sprintf("%d violation(s)", result.ViolationsThisImage)),
		)
		if result.CumulativeViolationCount != nil {
			lines = append(lines, field("Total", fmt.Sprintf("%d violation(s)", *result.CumulativeViolationCount)))
		}
		if len(result.MissingItems) > 0 {
			lines = append(lines, field("Missing", strings.Join(result.MissingItems, ", ")))
		}
	}
	if len(result.PPEDetected) > 0 {
		lines = append(lines, field("Detected", strings.Join(result.PPEDetected, ", ")))
	}
	if result.ModelConfidence != nil {
		lines = append(lines, field("Confidence", fmt.Sprintf("%.0f%%", *result.ModelConfidence*100)))
	}
	lines = append(lines, dimStyle.Render("image "+result.SourceImageKey))

	return cardStyle.Render(strings.Join(lines, "\n"))
}

func field(label string, value string) string {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	return labelStyle.Render(label+":") + " " + value
}
