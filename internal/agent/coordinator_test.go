package agent

import (
	"context"
	"testing"
	"time"

	"modeld/internal/engine"
	"modeld/internal/tool"
	"modeld/pkg/types"
)

// fakeDriver replays a scripted sequence of TokenEvent batches, one batch
// per Generate call, so coordinator tests can exercise exact ReAct
// sequences without a loaded model.
type fakeDriver struct {
	batches   [][]engine.TokenEvent
	call      int
	cancelled bool
	messages  [][]types.Message // messages passed to each Generate call
}

func (f *fakeDriver) Generate(ctx context.Context, messages []types.Message, params types.GenerationParameters) (<-chan engine.TokenEvent, error) {
	idx := f.call
	f.call++
	f.messages = append(f.messages, messages)
	var batch []engine.TokenEvent
	if idx < len(f.batches) {
		batch = f.batches[idx]
	}
	out := make(chan engine.TokenEvent, len(batch))
	for _, ev := range batch {
		out <- ev
	}
	close(out)
	return out, nil
}

func (f *fakeDriver) CancelGeneration() { f.cancelled = true }

func textBatch(text string, finish types.FinishReason) []engine.TokenEvent {
	return []engine.TokenEvent{
		{Kind: engine.EventToken, Text: text},
		{Kind: engine.EventDone, Finish: finish},
	}
}

func toolCallBatch(tc types.ToolCall, finish types.FinishReason) []engine.TokenEvent {
	return []engine.TokenEvent{
		{Kind: engine.EventToolCall, ToolCall: tc},
		{Kind: engine.EventDone, Finish: finish},
	}
}

func drain(t *testing.T, out <-chan AgentEvent) []AgentEvent {
	t.Helper()
	var events []AgentEvent
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

func TestProcessPlainChat(t *testing.T) {
	driver := &fakeDriver{batches: [][]engine.TokenEvent{
		textBatch("Hello there", types.FinishStop),
	}}
	c := New(driver, Config{Registry: tool.NewRegistry()})

	out, err := c.Process(context.Background(), []types.Message{{Role: types.RoleUser, Content: "Hello"}}, types.DefaultGenerationParameters())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	events := drain(t, out)

	sawText, sawCompleted := false, false
	for _, ev := range events {
		switch ev.Kind {
		case EventText:
			sawText = true
		case EventToolCallStarted:
			t.Fatal("unexpected tool_call_started in plain chat")
		case EventCompleted:
			sawCompleted = true
		}
	}
	if !sawText || !sawCompleted {
		t.Fatalf("expected text and completed events, got %+v", events)
	}
}

func TestProcessSingleToolCall(t *testing.T) {
	calc := tool.NewRegistry()
	calc.Register(newEchoTool("calculator", "2 + 2 = 4"))

	driver := &fakeDriver{batches: [][]engine.TokenEvent{
		toolCallBatch(types.ToolCall{ID: "1", Name: "calculator", Arguments: `{"expression":"2+2"}`}, types.FinishToolUse),
		textBatch("The answer is 4.", types.FinishStop),
	}}
	c := New(driver, Config{Registry: calc})

	out, err := c.Process(context.Background(), []types.Message{{Role: types.RoleUser, Content: "what's 2+2"}}, types.DefaultGenerationParameters())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	events := drain(t, out)

	var kinds []EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	wantPrefix := []EventKind{EventToolCallStarted, EventToolExecuting, EventToolResult}
	if len(kinds) < len(wantPrefix) {
		t.Fatalf("expected at least %d events, got %d: %+v", len(wantPrefix), len(kinds), events)
	}
	for i, want := range wantPrefix {
		if kinds[i] != want {
			t.Fatalf("event %d: want kind %v, got %v (%+v)", i, want, kinds[i], events)
		}
	}
	lastKind := kinds[len(kinds)-1]
	if lastKind != EventCompleted {
		t.Fatalf("expected stream to end with completed, got %v", lastKind)
	}

	var toolResultText string
	for _, ev := range events {
		if ev.Kind == EventToolResult {
			toolResultText = ev.Text
		}
	}
	if toolResultText != "2 + 2 = 4" {
		t.Fatalf("expected tool_result content %q, got %q", "2 + 2 = 4", toolResultText)
	}
}

func TestProcessToolNotFound(t *testing.T) {
	driver := &fakeDriver{batches: [][]engine.TokenEvent{
		toolCallBatch(types.ToolCall{ID: "1", Name: "nonexistent", Arguments: `{}`}, types.FinishToolUse),
		textBatch("done", types.FinishStop),
	}}
	c := New(driver, Config{Registry: tool.NewRegistry()})

	out, err := c.Process(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}}, types.DefaultGenerationParameters())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	events := drain(t, out)

	var got string
	for _, ev := range events {
		if ev.Kind == EventToolResult {
			got = ev.Text
		}
	}
	want := "Tool 'nonexistent' failed: Tool not found: nonexistent"
	if got != want {
		t.Fatalf("expected tool_result %q, got %q", want, got)
	}
}

func TestProcessDepthCap(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(newEchoTool("loop", "ok"))

	var batches [][]engine.TokenEvent
	for i := 0; i < maxIterations; i++ {
		batches = append(batches, toolCallBatch(types.ToolCall{ID: "x", Name: "loop", Arguments: `{}`}, types.FinishToolUse))
	}
	driver := &fakeDriver{batches: batches}
	c := New(driver, Config{Registry: reg})

	out, err := c.Process(context.Background(), []types.Message{{Role: types.RoleUser, Content: "go"}}, types.DefaultGenerationParameters())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	events := drain(t, out)

	executing := 0
	var noticeSeen, completedSeen bool
	for i, ev := range events {
		if ev.Kind == EventToolExecuting {
			executing++
		}
		if ev.Kind == EventText && ev.Text == DepthCapNotice {
			noticeSeen = true
		}
		if ev.Kind == EventCompleted {
			completedSeen = true
			if i != len(events)-1 {
				t.Fatal("completed must be the terminal event")
			}
		}
	}
	if executing != maxIterations {
		t.Fatalf("expected %d tool_executing cycles, got %d", maxIterations, executing)
	}
	if !noticeSeen || !completedSeen {
		t.Fatalf("expected depth-cap notice and completed, got %+v", events)
	}
}

func TestProcessCancellationIsClean(t *testing.T) {
	driver := &fakeDriver{batches: [][]engine.TokenEvent{
		textBatch("partial", types.FinishCancelled),
	}}
	c := New(driver, Config{Registry: tool.NewRegistry()})

	out, err := c.Process(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}}, types.DefaultGenerationParameters())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	events := drain(t, out)
	for _, ev := range events {
		if ev.Err != nil {
			t.Fatalf("cancellation must not surface an error event, got %+v", ev)
		}
		if ev.Kind == EventCompleted {
			t.Fatal("cancellation must not emit completed")
		}
	}
}

func TestProcessRejectsConcurrentCall(t *testing.T) {
	driver := &fakeDriver{batches: [][]engine.TokenEvent{
		textBatch("slow", types.FinishStop),
	}}
	c := New(driver, Config{Registry: tool.NewRegistry()})
	c.processing.Store(true)

	_, err := c.Process(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}}, types.DefaultGenerationParameters())
	if !IsAlreadyProcessing(err) {
		t.Fatalf("expected AlreadyProcessingError, got %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	driver := &fakeDriver{}
	c := New(driver, Config{Registry: tool.NewRegistry()})
	c.Cancel()
	c.Cancel()
	if !driver.cancelled {
		t.Fatal("expected underlying driver to be cancelled")
	}
}

func TestEmptyMessageListGetsSystemPrompt(t *testing.T) {
	driver := &fakeDriver{batches: [][]engine.TokenEvent{
		textBatch("hi", types.FinishStop),
	}}
	c := New(driver, Config{Registry: tool.NewRegistry()})
	out, err := c.Process(context.Background(), nil, types.DefaultGenerationParameters())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	drain(t, out)
	if len(driver.messages) == 0 || len(driver.messages[0]) == 0 || driver.messages[0][0].Role != types.RoleSystem {
		t.Fatalf("expected first generation to start with a system message, got %+v", driver.messages)
	}
}

func TestProcessTimesOutViaContext(t *testing.T) {
	driver := &fakeDriver{}
	c := New(driver, Config{Registry: tool.NewRegistry()})
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond)

	out, err := c.Process(ctx, []types.Message{{Role: types.RoleUser, Content: "hi"}}, types.DefaultGenerationParameters())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	events := drain(t, out)
	if len(events) != 0 {
		t.Fatalf("expected no events once context is already done, got %+v", events)
	}
}

// echoTool is a minimal test double satisfying tool.Tool.
type echoTool struct {
	name    string
	content string
}

func newEchoTool(name, content string) *echoTool { return &echoTool{name: name, content: content} }

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "test tool" }
func (e *echoTool) ParametersSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (e *echoTool) Execute(ctx context.Context, args map[string]any) tool.Output {
	return tool.Success(e.content)
}
