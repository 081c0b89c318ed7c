// Package command turns recognised speech into structured task-management
// intents.
//
// Classification is phrase containment over the lower-cased utterance, checked
// in a fixed priority order (add, delete, list, clear, count, help). The first
// family with a matching trigger wins, so "add task delete old files" is an
// [AddTask] whose title is "Delete old files". There is no language model in
// this path: the same text and the same clock always yield the same [Intent].
package command

import "github.com/Shaxina0930/vocalis-app/pkg/types"

// Kind identifies the variant of an [Intent].
type Kind int

const (
	KindUnrecognized Kind = iota
	KindAddTask
	KindDeleteTask
	KindListTasks
	KindClearAll
	KindCountTasks
	KindHelp
)

// String returns the snake_case name used in logs, metrics, and JSON output.
func (k Kind) String() string {
	switch k {
	case KindAddTask:
		return "add_task"
	case KindDeleteTask:
		return "delete_task"
	case KindListTasks:
		return "list_tasks"
	case KindClearAll:
		return "clear_all"
	case KindCountTasks:
		return "count_tasks"
	case KindHelp:
		return "help"
	default:
		return "unrecognized"
	}
}

// Intent is the closed set of commands a transcript can be classified into.
// The concrete types are [AddTask], [DeleteTask], [ListTasks], [ClearAll],
// [CountTasks], [Help], and [Unrecognized].
type Intent interface {
	Kind() Kind
	intent()
}

// AddTask requests creation of a task. An empty Title means the user said the
// trigger without naming anything; the executor asks for clarification.
type AddTask struct {
	Title string
	Date  *types.Date
	Time  *types.TimeOfDay
}

// DeleteTask requests removal of one task, identified either by its 1-based
// position in the current listing or by a fragment of its title.
type DeleteTask struct {
	Identifier string
}

// ListTasks requests a spoken enumeration of all tasks.
type ListTasks struct{}

// ClearAll requests removal of every task.
type ClearAll struct{}

// CountTasks requests the number of tasks.
type CountTasks struct{}

// Help requests the list of supported commands.
type Help struct{}

// Unrecognized carries text that matched no trigger. Callers treat it as
// free-form chat.
type Unrecognized struct {
	Text string
}

func (AddTask) Kind() Kind      { return KindAddTask }
func (DeleteTask) Kind() Kind   { return KindDeleteTask }
func (ListTasks) Kind() Kind    { return KindListTasks }
func (ClearAll) Kind() Kind     { return KindClearAll }
func (CountTasks) Kind() Kind   { return KindCountTasks }
func (Help) Kind() Kind         { return KindHelp }
func (Unrecognized) Kind() Kind { return KindUnrecognized }

func (AddTask) intent()      {}
func (DeleteTask) intent()   {}
func (ListTasks) intent()    {}
func (ClearAll) intent()     {}
func (CountTasks) intent()   {}
func (Help) intent()         {}
func (Unrecognized) intent() {}
