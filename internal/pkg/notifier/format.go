package notifier

import (
	"fmt"
	"strings"
	"time"

	"sitemonitor/internal/pkg/models"
)

const chatSubject = "Daily Monitoring Alert"

// Builds the payload for one channel type.
func BuildPayload(typ models.ChannelType, recipient string, alerts []models.Alert, result *models.DailyCheckResult) models.NotificationPayload {
	p := models.NotificationPayload{Channel: typ, Recipient: recipient, Data: result}
	switch typ {
	case models.ChannelEmail:
		p.Subject = "Daily SEO Monitoring Alert - " + result.SiteURL
		p.Message = FormatEmail(alerts, result)
	case models.ChannelWebhook:
		p.Subject = chatSubject
		p.Message = fmt.Sprintf("Daily monitoring alert for %s: %d critical issues found", result.SiteURL, result.Summary.CriticalIssues)
	case models.ChannelChat:
		p.Subject = chatSubject
		p.Message = FormatChat(alerts, result)
	}
	return p
}

// Plain-text report body.
func FormatEmail(alerts []models.Alert, result *models.DailyCheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily SEO Monitoring Report for %s\n\n", result.SiteURL)
	fmt.Fprintf(&b, "Overall Score: %d/100\n", result.Summary.OverallScore)
	fmt.Fprintf(&b, "Critical Issues: %d\n\n", result.Summary.CriticalIssues)

	b.WriteString("Recent Alerts:\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", a.Severity, a.Title, a.Message)
	}

	b.WriteString("\nRecommendations:\n")
	for _, r := range result.Summary.Recommendations {
		fmt.Fprintf(&b, "- %s\n", r)
	}

	fmt.Fprintf(&b, "\nReport generated at: %s", result.Timestamp.Local().Format(time.RFC1123))
	return b.String()
}

// Slack mrkdwn body.
func FormatChat(alerts []models.Alert, result *models.DailyCheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: Daily monitoring alert for %s\n", result.SiteURL)
	fmt.Fprintf(&b, "Overall Score: *%d/100*\n", result.Summary.OverallScore)
	fmt.Fprintf(&b, "Critical Issues: *%d*", result.Summary.CriticalIssues)
	for _, a := range alerts {
		fmt.Fprintf(&b, "\n• *%s* (%s): %s", a.Title, a.Severity, a.Message)
	}
	return b.String()
}

// Attachment colour for the most severe alert.
func chatColor(alerts []models.Alert) string {
	highest := models.Severity("")
	for _, a := range alerts {
		if a.Severity.Rank() > highest.Rank() {
			highest = a.Severity
		}
	}
	switch highest {
	case models.SeverityCritical:
		return "danger"
	case models.SeverityHigh, models.SeverityMedium:
		return "warning"
	default:
		return "good"
	}
}
