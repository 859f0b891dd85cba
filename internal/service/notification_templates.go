package service

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
	"unicode"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

// Notification categories recorded in the notification log.
const (
	CategoryConfirmation   = "confirmation"
	CategoryObjection      = "objection"
	CategoryDocumentUpload = "document_upload"
	CategoryResubmission   = "resubmission"
	CategoryStatusUpdate   = "status_update"
	CategoryAdminAlert     = "admin_alert"
)

// Message is one outbound notification.
type Message struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
	Category  string
}

type emailView struct {
	Title       string
	Tone        string
	Greeting    string
	Paragraphs  []string
	ListTitle   string
	Items       []string
	Quote       string
	CTAText     string
	CTALink     string
	GeneratedAt string
}

var toneColors = map[string][2]string{
	"success": {"#d4edda", "#28a745"},
	"warning": {"#fff3cd", "#ffc107"},
	"danger":  {"#f8d7da", "#dc3545"},
	"info":    {"#cce7ff", "#007bff"},
}

var htmlLayout = htmltemplate.Must(htmltemplate.New("email").Funcs(htmltemplate.FuncMap{
	"bg":     func(tone string) string { return toneColors[tone][0] },
	"border": func(tone string) string { return toneColors[tone][1] },
}).Parse(`<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; background-color: #f5f5f5;">
<div style="max-width: 600px; margin: 0 auto; background-color: #fff;">
<div style="background: #667eea; color: #fff; padding: 30px 20px; text-align: center;"><h1 style="margin: 0;">AI Banking Portal</h1></div>
<div style="padding: 30px;">
<div style="background: {{bg .Tone}}; padding: 25px; border-left: 6px solid {{border .Tone}};">
<h2 style="margin: 0 0 15px 0;">{{.Title}}</h2>
{{if .Greeting}}<p>{{.Greeting}}</p>{{end}}
{{range .Paragraphs}}<p>{{.}}</p>{{end}}
{{if .Quote}}<blockquote style="font-style: italic;">&ldquo;{{.Quote}}&rdquo;</blockquote>{{end}}
{{if .Items}}{{if .ListTitle}}<strong>{{.ListTitle}}</strong>{{end}}<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>
{{if and .CTAText .CTALink}}<p style="text-align: center;"><a href="{{.CTALink}}" style="background: #667eea; color: #fff; padding: 15px 30px; text-decoration: none;">{{.CTAText}}</a></p>{{end}}
</div>
<div style="background: #f8f9fa; padding: 20px; text-align: center; color: #6c757d; font-size: 13px;">
This is an automated message from <strong>AI Banking Portal</strong>. Please do not reply to this email.<br>Generated on {{.GeneratedAt}}
</div>
</div>
</body>
</html>`))

var textLayout = texttemplate.Must(texttemplate.New("email").Parse(`{{.Title}}
{{if .Greeting}}
{{.Greeting}}
{{end}}{{range .Paragraphs}}
{{.}}
{{end}}{{if .Quote}}
"{{.Quote}}"
{{end}}{{if .Items}}{{if .ListTitle}}
{{.ListTitle}}{{end}}
{{range .Items}}- {{.}}
{{end}}{{end}}{{if .CTALink}}
{{.CTAText}}: {{.CTALink}}
{{end}}`))

type statusCopy struct {
	emoji   string
	title   string
	message string
	tone    string
	steps   []string
}

var statusCopies = map[models.ApplicationStatus]statusCopy{
	models.StatusApproved: {
		emoji:   "🎉",
		title:   "Congratulations! Your Loan is Approved",
		message: "We are pleased to inform you that your loan application has been approved! Our team will contact you shortly with the next steps.",
		tone:    "success",
		steps: []string{
			"You will receive loan terms and conditions via email",
			"Our representative will contact you for documentation",
			"Loan disbursement will be processed within 2-3 business days",
		},
	},
	models.StatusRejected: {
		emoji:   "❌",
		title:   "Application Status Update",
		message: "After careful review, we regret to inform you that your loan application does not meet our current lending criteria.",
		tone:    "danger",
		steps: []string{
			"Review the reasons for rejection below",
			"You may reapply after addressing the mentioned concerns",
			"Contact our support team for guidance on improving your profile",
		},
	},
	models.StatusUnderReview: {
		emoji:   "🔍",
		title:   "Application Under Review",
		message: "Your loan application is currently being reviewed by our underwriting team. We appreciate your patience.",
		tone:    "info",
		steps: []string{
			"Our team is carefully evaluating your application",
			"You will be notified of any document requirements",
			"Expected decision within 2-3 business days",
		},
	},
}

var adminActionEmoji = map[string]string{
	"new_application":         "📝",
	"documents_uploaded":      "📤",
	"application_resubmitted": "🔄",
}

// Templates renders notification messages.
type Templates struct {
	portalURL string
	now       func() time.Time
}

// NewTemplates constructs message templates linking back to portalURL.
func NewTemplates(portalURL string) *Templates {
	return &Templates{portalURL: strings.TrimRight(portalURL, "/"), now: time.Now}
}

// SubmissionConfirmation acknowledges a scored application.
func (t *Templates) SubmissionConfirmation(to, name, applicationID string, assessment models.Assessment) Message {
	tone := "success"
	switch assessment.Status {
	case models.VerdictConditional:
		tone = "warning"
	case models.VerdictRejected:
		tone = "danger"
	}
	view := emailView{
		Title:    "Application " + applicationID + " Received",
		Tone:     tone,
		Greeting: "Dear " + fallbackName(name) + ",",
		Paragraphs: []string{
			"Thank you for applying. Your loan application " + applicationID + " has been received and assessed.",
			"Eligibility: " + humanVerdict(assessment.Status) + ". " + assessment.Reason,
		},
		ListTitle: "Documents to prepare:",
		Items:     assessment.Documents,
		CTAText:   "Track Your Application",
		CTALink:   t.link("/dashboard"),
	}
	return t.render(to, "✅ Loan Application Confirmed - "+applicationID, CategoryConfirmation, view)
}

// Objection asks the applicant for more information.
func (t *Templates) Objection(to, applicationID, reason, requestedDocuments string) Message {
	view := emailView{
		Title:    "Action Required for Application " + applicationID,
		Tone:     "warning",
		Greeting: "Dear Applicant,",
		Paragraphs: []string{
			"We have reviewed your loan application " + applicationID + " and require additional information to proceed.",
			"Reason for objection: " + reason,
			"Please log in to your dashboard to upload the required documents and resubmit your application.",
		},
		ListTitle: "Requested documents:",
		Items:     splitList(requestedDocuments, ","),
		CTAText:   "Access Application Portal",
		CTALink:   t.link("/apply"),
	}
	return t.render(to, "📋 Document Resubmission Required - Application "+applicationID, CategoryObjection, view)
}

// DocumentReceipt confirms an upload.
func (t *Templates) DocumentReceipt(to, applicationID, documentType string) Message {
	view := emailView{
		Title: "Document Received",
		Tone:  "info",
		Paragraphs: []string{
			"Your " + documentType + " has been successfully uploaded for application " + applicationID +
				". Our team will review it shortly and contact you if any additional information is needed.",
		},
	}
	return t.render(to, "Document Uploaded Successfully - Application "+applicationID, CategoryDocumentUpload, view)
}

// ResubmissionReceipt confirms a resubmitted application.
func (t *Templates) ResubmissionReceipt(to, applicationID string, documents []string) Message {
	view := emailView{
		Title: "Application Resubmitted",
		Tone:  "info",
		Paragraphs: []string{
			"Your application " + applicationID + " has been resubmitted and returned to the review queue.",
		},
		ListTitle: "Documents on file:",
		Items:     documents,
		CTAText:   "View Application",
		CTALink:   t.link("/dashboard"),
	}
	return t.render(to, "Application Resubmitted - "+applicationID, CategoryResubmission, view)
}

// StatusUpdate reports a staff decision or review start.
func (t *Templates) StatusUpdate(to, name, applicationID string, status models.ApplicationStatus, notes string) Message {
	sc, ok := statusCopies[status]
	if !ok {
		sc = statusCopies[models.StatusUnderReview]
	}
	view := emailView{
		Title:      sc.emoji + " " + sc.title,
		Tone:       sc.tone,
		Greeting:   "Dear " + fallbackName(name) + ",",
		Paragraphs: []string{sc.message},
		Quote:      notes,
		ListTitle:  "Next steps:",
		Items:      sc.steps,
		CTAText:    "View Application Details",
		CTALink:    t.link("/dashboard"),
	}
	return t.render(to, sc.emoji+" Application Update - "+applicationID, CategoryStatusUpdate, view)
}

// AdminAlert notifies the staff mailbox.
func (t *Templates) AdminAlert(to, applicationID, action, detail string) Message {
	emoji, ok := adminActionEmoji[action]
	if !ok {
		emoji = "⚠️"
	}
	label := titleWords(action)
	view := emailView{
		Title:      emoji + " " + label,
		Tone:       "info",
		Greeting:   "Dear Admin,",
		Paragraphs: []string{detail, "A loan application requires your attention in the admin portal."},
		CTAText:    "Open Admin Portal",
		CTALink:    t.link("/admin"),
	}
	return t.render(to, emoji+" Admin Alert - "+label+" - "+applicationID, CategoryAdminAlert, view)
}

func (t *Templates) render(to, subject, category string, view emailView) Message {
	view.GeneratedAt = t.now().Format("January 02, 2006 at 03:04 PM")

	var plain, html bytes.Buffer
	// Both layouts are static; execution only fails on writer errors.
	_ = textLayout.Execute(&plain, view)
	_ = htmlLayout.Execute(&html, view)

	return Message{
		To:        to,
		Subject:   subject,
		PlainBody: strings.TrimSpace(plain.String()),
		HTMLBody:  html.String(),
		Category:  category,
	}
}

func (t *Templates) link(path string) string {
	if t.portalURL == "" {
		return ""
	}
	return t.portalURL + path
}

func humanVerdict(v models.Verdict) string {
	switch v {
	case models.VerdictApproved:
		return "Approved"
	case models.VerdictConditional:
		return "Conditionally approved"
	case models.VerdictRejected:
		return "Not approved"
	default:
		return "Pending review"
	}
}

func fallbackName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Applicant"
	}
	return name
}

// titleWords turns "documents_uploaded" into "Documents Uploaded".
func titleWords(raw string) string {
	words := strings.Fields(strings.ReplaceAll(raw, "_", " "))
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
