package dispatch

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/lifehub-app/notify-engine/internal/model"
)

// emailTemplates are keyed by notification type. Variables come from the
// notification payload and its metadata map.
var emailTemplates = map[model.NotificationType]*template.Template{
	model.TypeTaskDue: mustTemplate("task_due", `
<h2>{{.Title}}</h2>
<p>Hi {{.RecipientName}},</p>
<p>Your task <strong>{{.EntityName}}</strong> is due {{.DueDate}}.</p>
<p>{{.Message}}</p>`),

	model.TypeTaskOverdue: mustTemplate("task_overdue", `
<h2>{{.Title}}</h2>
<p>Hi {{.RecipientName}},</p>
<p>Your task <strong>{{.EntityName}}</strong> was due {{.DueDate}} and is now overdue.</p>
<p>{{.Message}}</p>`),

	model.TypeMention: mustTemplate("mention", `
<h2>{{.Title}}</h2>
<p>Hi {{.RecipientName}},</p>
<p>You were mentioned: {{.Message}}</p>`),

	model.TypeComment: mustTemplate("comment", `
<h2>{{.Title}}</h2>
<p>Hi {{.RecipientName}},</p>
<p>New comment on {{.EntityName}}: {{.Message}}</p>`),

	model.TypeGoalDeadline: mustTemplate("goal_deadline", `
<h2>{{.Title}}</h2>
<p>Hi {{.RecipientName}},</p>
<p>Your goal <strong>{{.EntityName}}</strong> reaches its deadline {{.DueDate}}.</p>
<p>{{.Message}}</p>`),

	model.TypeHabitReminder: mustTemplate("habit_reminder", `
<h2>{{.Title}}</h2>
<p>Hi {{.RecipientName}},</p>
<p>Time for <strong>{{.EntityName}}</strong>. {{.Message}}</p>`),

	model.TypeSystem: mustTemplate("system", `
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>`),
}

func mustTemplate(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(body))
}

// sanitizer strips any markup from user-supplied payload fields before they
// reach an HTML template.
var sanitizer = bluemonday.StrictPolicy()

type emailVars struct {
	Title         string
	Message       string
	RecipientName string
	EntityName    string
	DueDate       string
}

// RenderEmail builds the subject and HTML body for a notification.
// Returns an error when no template exists for the type.
func RenderEmail(n *model.Notification) (subject, body string, err error) {
	tmpl, ok := emailTemplates[n.Type]
	if !ok {
		return "", "", fmt.Errorf("no email template for type %q", n.Type)
	}

	vars := emailVars{
		Title:         sanitizer.Sanitize(n.Title),
		Message:       sanitizer.Sanitize(n.Message),
		RecipientName: metaString(n.Metadata, "recipient_name", "there"),
		EntityName:    sanitizer.Sanitize(metaString(n.Metadata, "entity_name", "")),
		DueDate:       metaString(n.Metadata, "due_date", ""),
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", "", fmt.Errorf("render email template: %w", err)
	}

	return vars.Title, sb.String(), nil
}

func metaString(meta model.JSONMap, key, fallback string) string {
	if meta == nil {
		return fallback
	}
	if v, ok := meta[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
