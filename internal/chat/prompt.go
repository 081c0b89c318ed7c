package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
	"github.com/Shaxina0930/vocalis-app/pkg/types"
)

// maxPromptTasks caps how many tasks are rendered into the system prompt.
const maxPromptTasks = 25

// FormatSystemPrompt renders the assistant instructions together with the
// user's current task list. now anchors "today" for the model.
//
// The formatter is pure and safe for concurrent use. An empty task list is
// stated explicitly so the model does not invent tasks.
func FormatSystemPrompt(tasks []taskstore.Task, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("You are Vocalis, a voice task assistant. ")
	sb.WriteString("Your replies are read aloud, so answer in one or two short plain sentences without markdown or lists. ")
	sb.WriteString("You cannot change the task list yourself; if the user wants to, tell them to say 'add task', 'delete task', 'list tasks' or 'clear all tasks'.")

	today := types.DateOf(now)
	fmt.Fprintf(&sb, "\n\n## Today\n%s (%s)", today, now.Weekday())
	if due := taskstore.ForDate(tasks, today); len(due) > 0 {
		sb.WriteString("\nDue today: ")
		for i, t := range due {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(t.Title)
			if t.Time != nil {
				sb.WriteString(" at " + t.Time.String())
			}
		}
		sb.WriteByte('.')
	}

	sb.WriteString("\n\n## Current Tasks\n")
	if len(tasks) == 0 {
		sb.WriteString("The user has no tasks.")
		return sb.String()
	}
	for i, t := range tasks {
		if i == maxPromptTasks {
			fmt.Fprintf(&sb, "...and %d more.", len(tasks)-maxPromptTasks)
			break
		}
		sb.WriteString(formatTask(i+1, t))
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatTask renders one numbered task line.
func formatTask(n int, t taskstore.Task) string {
	line := fmt.Sprintf("%d. %s", n, t.Title)
	switch {
	case t.Date != nil && t.Time != nil:
		line += fmt.Sprintf(" (%s at %s)", t.Date, t.Time)
	case t.Date != nil:
		line += fmt.Sprintf(" (%s)", t.Date)
	case t.Time != nil:
		line += fmt.Sprintf(" (at %s)", t.Time)
	}
	if d := strings.TrimSpace(t.Description); d != "" {
		line += " - " + d
	}
	return line
}
