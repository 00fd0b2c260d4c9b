package workflow

import "context"

// ProgressFunc reports intra-stage progress (0-100) and the current task.
type ProgressFunc func(progress int, task string)

// AgentAdapter is the capability every stage implements.
//
// Run reads what earlier stages left in wctx and writes only its own output
// field. It must honor ctx cancellation at its blocking points.
type AgentAdapter interface {
	Name() string
	Run(ctx context.Context, wctx *Context, report ProgressFunc) error
}

// Registry maps stage names to adapters.
type Registry map[string]AgentAdapter

// NewRegistry builds a registry keyed by adapter name.
func NewRegistry(adapters ...AgentAdapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Name()] = a
	}
	return r
}

// AdapterFunc adapts a function to AgentAdapter.
type AdapterFunc struct {
	StageName string
	Fn        func(ctx context.Context, wctx *Context, report ProgressFunc) error
}

func (f AdapterFunc) Name() string { return f.StageName }

func (f AdapterFunc) Run(ctx context.Context, wctx *Context, report ProgressFunc) error {
	return f.Fn(ctx, wctx, report)
}
