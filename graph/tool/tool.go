package tool

import "context"

// Tool defines the interface for executable tools that LLMs can invoke.
//
// Tools enable LLMs to interact with external systems and perform actions:
//   - Web searches
//   - Database queries
//   - API calls
//   - File operations
//   - Calculations
//   - Code execution
//
// Implementations should:
//   - Validate input parameters
//   - Respect context cancellation and timeouts
//   - Return structured output as map[string]interface{}
//   - Handle errors gracefully with clear error messages
//   - Be idempotent when possible
//
// Example implementation:
//
//	type WeatherTool struct{}
//
//	func (w *WeatherTool) Name() string {
//	    return "get_weather"
//	}
//
//	func (w *WeatherTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
//	    location, ok := input["location"].(string)
//	    if !ok {
//	        return nil, errors.New("location parameter required")
//	    }
//
//	    // Fetch weather data...
//	    temp := 72.5
//
//	    return map[string]interface{}{
//	        "temperature": temp,
//	        "conditions":  "sunny",
//	        "location":    location,
//	    }, nil
//	}
//
// Example usage in a workflow:
//
//	weatherTool := &WeatherTool{}
//	input := map[string]interface{}{"location": "San Francisco"}
//	output, err := weatherTool.Call(ctx, input)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Temperature: %v\n", output["temperature"])
type Tool interface {
	// Name returns the unique identifier for this tool.
	//
	// The name must match the tool name in ToolSpec used by the LLM.
	// Names should be lowercase with underscores, following function naming conventions.
	//
	// Examples: "search_web", "get_weather", "calculate", "send_email"
	Name() string

	// Call executes the tool with the provided input and returns the result.
	//
	// Parameters:
	//   - ctx: Context for cancellation, timeout, and metadata propagation
	//   - input: Tool parameters as key-value pairs (may be nil for parameterless tools)
	//
	// Returns:
	//   - map[string]interface{}: Tool execution result
	//   - error: Execution errors, validation errors, or context cancellation
	//
	// The input structure should match the Schema defined in the corresponding ToolSpec.
	// The output can be any structured data that the LLM can process.
	//
	// Implementations should:
	//   - Check ctx.Err() before expensive operations
	//   - Validate required input parameters
	//   - Return descriptive errors for invalid inputs
	//   - Include relevant metadata in the output
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)

	// Description explains what the tool does. The LLM uses it to decide
	// when to call the tool.
	Description() string

	// Schema defines the tool's input parameters as JSON Schema. May be
	// nil for parameterless tools.
	Schema() map[string]interface{}
}

// Invocation carries runtime context for tools that need more than their
// arguments: the originating call ID, the invocation's state, a store, and
// arbitrary per-run configuration.
type Invocation struct {
	// ToolCallID is the model-assigned ID of the originating tool call.
	ToolCallID string

	// State is the graph state at invocation time, passed as any so the
	// tool package stays state-type-agnostic.
	State interface{}

	// Store is the invocation's store, when one is configured.
	Store interface{}

	// Config carries caller-provided settings.
	Config map[string]interface{}
}

// RuntimeTool is the runtime-aware variant of Tool. The tool executor
// prefers CallWithRuntime when a tool implements it.
type RuntimeTool interface {
	Tool

	// CallWithRuntime executes the tool with its arguments plus the
	// runtime invocation context.
	CallWithRuntime(ctx context.Context, input map[string]interface{}, inv Invocation) (map[string]interface{}, error)
}

// FuncTool adapts a plain function (plus metadata) to the Tool interface.
//
// Example:
//
//	echo := tool.NewFuncTool("echo", "echoes its input", nil,
//	    func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
//	        return input, nil
//	    })
type FuncTool struct {
	name        string
	description string
	schema      map[string]interface{}
	fn          func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// NewFuncTool builds a FuncTool.
func NewFuncTool(name, description string, schema map[string]interface{}, fn func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)) *FuncTool {
	return &FuncTool{name: name, description: description, schema: schema, fn: fn}
}

// Name implements Tool.
func (f *FuncTool) Name() string { return f.name }

// Description implements Tool.
func (f *FuncTool) Description() string { return f.description }

// Schema implements Tool.
func (f *FuncTool) Schema() map[string]interface{} { return f.schema }

// Call implements Tool.
func (f *FuncTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return f.fn(ctx, input)
}
