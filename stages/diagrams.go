package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docflow/types"
	"github.com/BaSui01/docflow/workflow"
)

// Diagram types
const (
	DiagramStructure    = "structure"
	DiagramClass        = "class"
	DiagramSequence     = "sequence"
	DiagramDependencies = "dependencies"
	DiagramArchitecture = "architecture"

	diagramFormat = "mermaid"
)

const (
	maxStructureClasses   = 6
	maxStructureFunctions = 8
	maxStructureDeps      = 5
	maxDiagramClasses     = 8
	maxClassMethods       = 5
	maxSequenceEndpoints  = 6
	runtimeDepCount       = 4
	maxOtherDeps          = 8
)

// DiagramGenerator 根据代码分析生成 Mermaid 图
type DiagramGenerator struct {
	logger *zap.Logger
}

// NewDiagramGenerator 创建图表阶段
func NewDiagramGenerator(logger *zap.Logger) *DiagramGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiagramGenerator{logger: logger.With(zap.String("stage", workflow.StageDiagramGenerator))}
}

func (g *DiagramGenerator) Name() string { return workflow.StageDiagramGenerator }

// Run 写入 wctx.Diagrams
func (g *DiagramGenerator) Run(ctx context.Context, wctx *workflow.Context, report workflow.ProgressFunc) error {
	a := wctx.Analysis
	if a == nil {
		return types.NewError(types.ErrInvalidState, "diagrams require a repository analysis")
	}
	name := mermaidID(orDefault(a.ProjectID, wctx.Request.ProjectID))

	steps := []struct {
		task  string
		want  bool
		build func() workflow.Diagram
	}{
		{"Drawing project structure", a.FileCount > 0, func() workflow.Diagram {
			return workflow.Diagram{Type: DiagramStructure, Title: "Project Structure", Content: structureDiagram(name, a)}
		}},
		{"Drawing class hierarchy", len(a.Classes) > 0, func() workflow.Diagram {
			return workflow.Diagram{Type: DiagramClass, Title: "Class Hierarchy", Content: classDiagram(a)}
		}},
		{"Drawing API flow", len(a.APIEndpoints) > 0, func() workflow.Diagram {
			return workflow.Diagram{Type: DiagramSequence, Title: "API Flow", Content: sequenceDiagram(a)}
		}},
		{"Drawing dependencies", len(a.Dependencies) > 0, func() workflow.Diagram {
			return workflow.Diagram{Type: DiagramDependencies, Title: "Dependencies", Content: dependencyDiagram(name, a)}
		}},
	}

	var out []workflow.Diagram
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.want {
			report(i*100/len(steps), s.task)
			d := s.build()
			d.Format = diagramFormat
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, workflow.Diagram{
			Type:    DiagramArchitecture,
			Title:   "Project Overview",
			Content: overviewDiagram(name, a),
			Format:  diagramFormat,
		})
	}

	wctx.Diagrams = out
	g.logger.Debug("diagrams generated",
		zap.String("workflow_id", wctx.WorkflowID),
		zap.Int("count", len(out)))
	report(100, "Diagrams complete")
	return nil
}

// mermaidID 把名称转成 Mermaid 节点可用的标识
func mermaidID(s string) string {
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_", "/", "_").Replace(s)
}

func structureDiagram(name string, a *workflow.Analysis) string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	fmt.Fprintf(&b, "    A[%s] --> B[Source_Code]\n", name)
	for i, c := range head(a.Classes, maxStructureClasses) {
		fmt.Fprintf(&b, "    B --> C%d[%s]\n", i+1, mermaidID(c.Name))
	}
	for i, f := range head(a.Functions, maxStructureFunctions) {
		fmt.Fprintf(&b, "    B --> F%d[%s]\n", i+1, mermaidID(f.Name))
	}
	if len(a.Dependencies) > 0 {
		b.WriteString("    A --> DEPS[Dependencies]\n")
		for i, d := range head(a.Dependencies, maxStructureDeps) {
			fmt.Fprintf(&b, "    DEPS --> D%d[%s]\n", i+1, mermaidID(d))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func classDiagram(a *workflow.Analysis) string {
	var b strings.Builder
	b.WriteString("classDiagram\n")
	classes := head(a.Classes, maxDiagramClasses)
	for _, c := range classes {
		fmt.Fprintf(&b, "    class %s {\n", mermaidID(c.Name))
		for _, m := range head(c.Methods, maxClassMethods) {
			fmt.Fprintf(&b, "        +%s()\n", m)
		}
		b.WriteString("    }\n")
	}
	for _, c := range classes {
		for _, parent := range c.Inheritance {
			if strings.ContainsAny(parent, "=()") {
				continue
			}
			fmt.Fprintf(&b, "    %s <|-- %s\n", mermaidID(parent), mermaidID(c.Name))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func sequenceDiagram(a *workflow.Analysis) string {
	var b strings.Builder
	b.WriteString("sequenceDiagram\n")
	b.WriteString("    participant Client\n    participant API\n    participant Handler\n")
	for _, e := range head(a.APIEndpoints, maxSequenceEndpoints) {
		handler := orDefault(e.Function, "handler")
		fmt.Fprintf(&b, "    Client->>API: %s %s\n", e.Method, e.Path)
		fmt.Fprintf(&b, "    API->>Handler: %s()\n", handler)
		b.WriteString("    Handler-->>API: result\n")
		b.WriteString("    API-->>Client: response\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func dependencyDiagram(name string, a *workflow.Analysis) string {
	var b strings.Builder
	b.WriteString("graph LR\n")
	fmt.Fprintf(&b, "    PROJECT[%s]\n", name)
	runtime := head(a.Dependencies, runtimeDepCount)
	b.WriteString("    PROJECT --> RUNTIME[Runtime_Deps]\n")
	for i, d := range runtime {
		fmt.Fprintf(&b, "    RUNTIME --> R%d[%s]\n", i+1, mermaidID(d))
	}
	if rest := head(a.Dependencies[len(runtime):], maxOtherDeps); len(rest) > 0 {
		b.WriteString("    PROJECT --> OTHER[Other_Deps]\n")
		for i, d := range rest {
			fmt.Fprintf(&b, "    OTHER --> O%d[%s]\n", i+1, mermaidID(d))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func overviewDiagram(name string, a *workflow.Analysis) string {
	return fmt.Sprintf(`graph TD
    A[%s] --> B[Code_Base]
    B --> C[%d_Files]
    B --> D[%d_Functions]
    B --> E[%d_Classes]
    A --> F[Repository]
    F --> G[Source_Code]
    A --> H[Statistics]
    H --> I[%d_Lines_of_Code]`,
		name, a.FileCount, len(a.Functions), len(a.Classes), a.LinesOfCode)
}
