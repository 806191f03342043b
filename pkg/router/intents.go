package router

import "regexp"

// DefaultIntents declares the stock workflow intents, in tie-break priority
// order. Capability names follow the "<intent>_workflow" convention used by
// the workflow webhooks.
func DefaultIntents() []Intent {
	return []Intent{
		{
			Name:       "todo",
			Capability: "todo_workflow",
			Keywords: []string{
				"task", "todo", "to-do", "action item", "task list",
				"extract tasks", "create task", "add task",
			},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`task.*extract`),
				regexp.MustCompile(`todo.*create`),
				regexp.MustCompile(`extract.*task`),
				regexp.MustCompile(`add.*task`),
			},
			Description: "tasks added to the to-do list",
		},
		{
			Name:       "calendar",
			Capability: "calendar_workflow",
			Keywords: []string{
				"calendar", "appointment", "meeting", "event", "schedule",
				"reminder", "agenda", "book",
			},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`calendar.*add`),
				regexp.MustCompile(`meeting.*create`),
				regexp.MustCompile(`schedule.*(meeting|event|appointment)`),
				regexp.MustCompile(`add.*calendar`),
			},
			Description:   "event added to the calendar",
			RequiredSlots: []string{"date", "time", "title"},
		},
		{
			Name:       "drive",
			Capability: "drive_workflow",
			Keywords: []string{
				"save", "file", "drive", "cloud", "upload", "storage", "backup",
			},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`save.*file`),
				regexp.MustCompile(`upload.*(file|drive|cloud)`),
				regexp.MustCompile(`file.*save`),
			},
			Description: "file saved to cloud storage",
			NeedsFile:   true,
		},
		{
			Name:       "mail_categorization",
			Capability: "mail_categorization_workflow",
			Keywords: []string{
				"categorize", "classify", "organize", "label", "inbox",
			},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`mail.*categorize`),
				regexp.MustCompile(`email.*categorize`),
				regexp.MustCompile(`inbox.*organize`),
			},
			Description: "emails categorized",
		},
		{
			Name:       "mail_prioritizing",
			Capability: "mail_prioritizing_workflow",
			Keywords: []string{
				"priority", "important", "urgent", "sort", "prioritize",
				"high priority", "low priority", "show urgent", "show important",
			},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`mail.*priority`),
				regexp.MustCompile(`email.*priority`),
				regexp.MustCompile(`important.*mail`),
				regexp.MustCompile(`urgent.*mail`),
				regexp.MustCompile(`(high|low).*priority`),
				regexp.MustCompile(`show.*(urgent|important)`),
			},
			Description: "emails prioritized",
		},
	}
}
