package dialog

import (
	"fmt"
	"strings"
)

const unknownModel = "unknown"

// Render formats a dialog as plain text for export.
func Render(d *Dialog) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Диалог #%s\n", d.ID)
	fmt.Fprintf(&b, "Создан: %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Модель: %s\n", d.CurrentModel)
	fmt.Fprintf(&b, "Сообщений: %d\n\n", len(d.Messages))

	for _, msg := range d.Messages {
		role := "🤖 Бот"
		if msg.Role == RoleUser {
			role = "👤 Вы"
		}

		modelInfo := ""
		if msg.Model != "" && msg.Model != unknownModel {
			modelInfo = fmt.Sprintf(" (%s)", msg.Model)
		}

		fmt.Fprintf(&b, "%s%s (%s):\n%s\n\n", role, modelInfo, msg.Timestamp.Format("15:04"), msg.Content)
	}

	return b.String()
}
