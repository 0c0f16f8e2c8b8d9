package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Format renders turns one per line, the way they are shown to the model as context.
func Format(turns []Turn) string {
	if len(turns) == 0 {
		return "No recent messages"
	}

	var builder strings.Builder

	for _, turn := range turns {
		builder.WriteString(fmt.Sprintf("%s - %s: %s\n", formatTime(turn.Timestamp), turn.Role, turn.Text))
	}

	return builder.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return t.Format("15:04:05")
}
