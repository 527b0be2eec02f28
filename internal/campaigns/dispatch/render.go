package dispatch

import (
	"strings"

	prospectrepo "coachflow_backend/internal/prospects/repository"
)

// RenderTemplate substitutes {{field}} placeholders in a message body with
// prospect fields and campaign params. Unknown placeholders render empty so a
// half-filled template never leaks raw markers to a client.
func RenderTemplate(body string, p prospectrepo.Prospect, params map[string]string) string {
	fields := map[string]string{
		"first_name":  p.FirstName,
		"last_name":   p.LastName,
		"name":        strings.TrimSpace(p.FirstName + " " + p.LastName),
		"email":       p.Email,
		"phone":       p.Phone,
		"chat_handle": p.ChatHandle,
	}
	for key, value := range params {
		fields[key] = value
	}

	var sb strings.Builder
	remaining := body
	for {
		start := strings.Index(remaining, "{{")
		if start < 0 {
			sb.WriteString(remaining)
			break
		}
		end := strings.Index(remaining[start:], "}}")
		if end < 0 {
			sb.WriteString(remaining)
			break
		}

		sb.WriteString(remaining[:start])
		key := strings.TrimSpace(remaining[start+2 : start+end])
		sb.WriteString(fields[key])
		remaining = remaining[start+end+2:]
	}
	return sb.String()
}
