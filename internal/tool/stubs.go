package tool

import "context"

// stubTool is a documented placeholder for the tools whose real semantics
// are an external collaborator's problem per the spec (calendar access,
// web scraping, clipboard access, ...). It is registered so /tools lists
// all default names and the coordinator's dispatch path is reachable for
// any of them, but Execute always reports execution_failed.
type stubTool struct {
	name        string
	description string
	schema      *SchemaBuilder
}

func (s stubTool) Name() string        { return s.name }
func (s stubTool) Description() string { return s.description }

func (s stubTool) ParametersSchema() map[string]any {
	if s.schema == nil {
		return NewSchema().Build()
	}
	return s.schema.Build()
}

func (s stubTool) Execute(context.Context, map[string]any) Output {
	return Error("execution_failed: " + s.name + " is not implemented in this build")
}

// DefaultStubs returns the non-reference default tools named in the spec:
// clipboard, web_search, calendar, reminders, open_app, timer.
func DefaultStubs() []Tool {
	return []Tool{
		stubTool{name: "clipboard", description: "Reads or writes the system clipboard.",
			schema: NewSchema().AddParamWithEnum("action", "string", "clipboard operation", []string{"read", "write"}, true).
				AddParam("text", "string", "text to write when action is write", false)},
		stubTool{name: "web_search", description: "Searches the web and returns a summary of results.",
			schema: NewSchema().AddParam("query", "string", "search query", true)},
		stubTool{name: "calendar", description: "Reads or creates calendar events.",
			schema: NewSchema().AddParam("action", "string", "calendar operation", true)},
		stubTool{name: "reminders", description: "Reads or creates reminders.",
			schema: NewSchema().AddParam("action", "string", "reminders operation", true)},
		stubTool{name: "open_app", description: "Opens an application by name.",
			schema: NewSchema().AddParam("name", "string", "application name", true)},
		stubTool{name: "timer", description: "Starts or cancels a timer.",
			schema: NewSchema().AddParam("action", "string", "timer operation", true).
				AddParam("duration_seconds", "number", "duration in seconds when action is start", false)},
	}
}

// NewDefaultRegistry returns a Registry pre-populated with the spec's
// default-registered tools: the two self-contained reference
// implementations plus documented stubs for the rest.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Calculator{})
	r.Register(DeviceInfo{})
	for _, t := range DefaultStubs() {
		r.Register(t)
	}
	return r
}
