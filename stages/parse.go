package stages

import (
	"maps"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/BaSui01/docflow/workflow"
)

// fileFacts 单个文件的解析结果
type fileFacts struct {
	functions []workflow.Function
	classes   []workflow.Class
	imports   []string
	endpoints []workflow.Endpoint
}

// parser 按语言解析源码
type parser func(path string, lines []string) fileFacts

var parsers = map[string]parser{
	"python":     parsePython,
	"javascript": parseJavaScript,
	"typescript": parseJavaScript,
	"java":       parseJava,
	"go":         parseGo,
	"ruby":       parseRuby,
	"php":        parsePHP,
}

// =============================================================================
// Python
// =============================================================================

var (
	pyClass     = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*(?:\(([^)]*)\))?\s*:`)
	pyDef       = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(([^)]*)\)?`)
	pyImport    = regexp.MustCompile(`^\s*import\s+([\w.]+)`)
	pyFrom      = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s`)
	pyRoute     = regexp.MustCompile(`^\s*@\w+\.(route|get|post|put|delete|patch)\(\s*['"]([^'"]+)['"](.*)`)
	pyMethods   = regexp.MustCompile(`methods\s*=\s*\[([^\]]*)\]`)
	pyDocstring = regexp.MustCompile(`^\s*(?:"""|''')(.*?)(?:"""|''')?\s*$`)
)

func parsePython(path string, lines []string) fileFacts {
	var (
		facts        fileFacts
		classIdx     = -1
		classIndent  = 0
		pendingRoute []workflow.Endpoint
	)

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if classIdx >= 0 && indent <= classIndent && !strings.HasPrefix(strings.TrimSpace(line), "@") {
			classIdx = -1
		}

		if m := pyClass.FindStringSubmatch(line); m != nil {
			facts.classes = append(facts.classes, workflow.Class{
				Name:        m[2],
				File:        path,
				Inheritance: splitNames(m[3]),
				Docstring:   docstringAt(lines, i+1),
				Line:        i + 1,
			})
			classIdx = len(facts.classes) - 1
			classIndent = len(m[1])
			continue
		}

		if m := pyRoute.FindStringSubmatch(line); m != nil {
			methods := []string{http.MethodGet}
			if m[1] != "route" {
				methods = []string{strings.ToUpper(m[1])}
			} else if mm := pyMethods.FindStringSubmatch(m[3]); mm != nil {
				methods = nil
				for _, v := range splitNames(mm[1]) {
					methods = append(methods, strings.ToUpper(strings.Trim(v, `'"`)))
				}
			}
			for _, method := range methods {
				pendingRoute = append(pendingRoute, workflow.Endpoint{Method: method, Path: m[2], File: path})
			}
			continue
		}

		if m := pyDef.FindStringSubmatch(line); m != nil {
			name := m[2]
			for _, ep := range pendingRoute {
				ep.Function = name
				facts.endpoints = append(facts.endpoints, ep)
			}
			pendingRoute = nil

			if classIdx >= 0 && len(m[1]) > classIndent {
				facts.classes[classIdx].Methods = append(facts.classes[classIdx].Methods, name)
				continue
			}
			facts.functions = append(facts.functions, workflow.Function{
				Name:       name,
				File:       path,
				Parameters: pythonParams(m[3]),
				Docstring:  docstringAt(lines, i+1),
				Line:       i + 1,
			})
			continue
		}

		if m := pyImport.FindStringSubmatch(line); m != nil {
			facts.imports = append(facts.imports, topModule(m[1], "."))
		} else if m := pyFrom.FindStringSubmatch(line); m != nil && !strings.HasPrefix(m[1], ".") {
			facts.imports = append(facts.imports, topModule(m[1], "."))
		}
	}
	return facts
}

func pythonParams(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if i := strings.IndexAny(p, ":="); i >= 0 {
			p = strings.TrimSpace(p[:i])
		}
		p = strings.TrimLeft(p, "*")
		if p == "" || p == "self" || p == "cls" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func docstringAt(lines []string, i int) string {
	if i >= len(lines) {
		return ""
	}
	m := pyDocstring.FindStringSubmatch(lines[i])
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// =============================================================================
// JavaScript / TypeScript
// =============================================================================

var (
	jsFunction = regexp.MustCompile(`function\s*\*?\s+(\w+)\s*\(([^)]*)\)`)
	jsArrow    = regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(([^)]*)\)\s*=>`)
	jsClass    = regexp.MustCompile(`class\s+(\w+)(?:\s+extends\s+([\w.]+))?`)
	jsMethod   = regexp.MustCompile(`^\s+(?:static\s+)?(?:async\s+)?(\w+)\s*\([^)]*\)\s*\{`)
	jsImport   = regexp.MustCompile(`^\s*import\s+(?:.+?\s+from\s+)?['"]([^'"]+)['"]`)
	jsRequire  = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	jsRoute    = regexp.MustCompile(`\b(?:app|router)\.(get|post|put|delete|patch)\(\s*['"]([^'"]+)['"]\s*,\s*(\w+)?`)
)

var jsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "return": true,
}

func parseJavaScript(path string, lines []string) fileFacts {
	var facts fileFacts
	classIdx := -1

	for i, line := range lines {
		if classIdx >= 0 && strings.HasPrefix(line, "}") {
			classIdx = -1
		}

		if m := jsClass.FindStringSubmatch(line); m != nil && !strings.Contains(line, "className") {
			facts.classes = append(facts.classes, workflow.Class{
				Name:        m[1],
				File:        path,
				Inheritance: splitNames(m[2]),
				Line:        i + 1,
			})
			if !strings.Contains(line, "}") {
				classIdx = len(facts.classes) - 1
			}
			continue
		}

		if m := jsFunction.FindStringSubmatch(line); m != nil {
			facts.functions = append(facts.functions, workflow.Function{
				Name: m[1], File: path, Parameters: splitNames(m[2]), Line: i + 1,
			})
		} else if m := jsArrow.FindStringSubmatch(line); m != nil {
			facts.functions = append(facts.functions, workflow.Function{
				Name: m[1], File: path, Parameters: splitNames(m[2]), Line: i + 1,
			})
		} else if classIdx >= 0 {
			if m := jsMethod.FindStringSubmatch(line); m != nil && !jsKeywords[m[1]] {
				facts.classes[classIdx].Methods = append(facts.classes[classIdx].Methods, m[1])
			}
		}

		if m := jsImport.FindStringSubmatch(line); m != nil {
			facts.imports = appendPackage(facts.imports, m[1])
		}
		for _, m := range jsRequire.FindAllStringSubmatch(line, -1) {
			facts.imports = appendPackage(facts.imports, m[1])
		}
		if m := jsRoute.FindStringSubmatch(line); m != nil {
			facts.endpoints = append(facts.endpoints, workflow.Endpoint{
				Method: strings.ToUpper(m[1]), Path: m[2], Function: m[3], File: path,
			})
		}
	}
	return facts
}

// appendPackage 记录 npm 包名，忽略相对路径
func appendPackage(deps []string, spec string) []string {
	if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
		return deps
	}
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(parts) > 1 {
		return append(deps, parts[0]+"/"+parts[1])
	}
	return append(deps, parts[0])
}

// =============================================================================
// Java
// =============================================================================

var (
	javaClass   = regexp.MustCompile(`\b(?:class|interface|enum)\s+(\w+)(?:\s+extends\s+([\w.]+))?(?:\s+implements\s+([\w.,\s]+?))?\s*\{?\s*$`)
	javaMethod  = regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+)?(?:final\s+)?(?:synchronized\s+)?[\w<>\[\],?\s]+?\s+(\w+)\s*\(([^)]*)\)`)
	javaImport  = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+)\s*;`)
	javaMapping = regexp.MustCompile(`@(Get|Post|Put|Delete|Patch|Request)Mapping\(\s*(?:value\s*=\s*|path\s*=\s*)?"([^"]+)"`)
)

func parseJava(path string, lines []string) fileFacts {
	var facts fileFacts
	classIdx := -1
	var pending []workflow.Endpoint

	for i, line := range lines {
		if m := javaClass.FindStringSubmatch(line); m != nil {
			inherit := splitNames(m[2])
			inherit = append(inherit, splitNames(m[3])...)
			facts.classes = append(facts.classes, workflow.Class{
				Name: m[1], File: path, Inheritance: inherit, Line: i + 1,
			})
			classIdx = len(facts.classes) - 1
			continue
		}
		if m := javaMapping.FindStringSubmatch(line); m != nil {
			method := strings.ToUpper(m[1])
			if m[1] == "Request" {
				method = http.MethodGet
			}
			pending = append(pending, workflow.Endpoint{Method: method, Path: m[2], File: path})
			continue
		}
		if m := javaMethod.FindStringSubmatch(line); m != nil {
			name := m[1]
			for _, ep := range pending {
				ep.Function = name
				facts.endpoints = append(facts.endpoints, ep)
			}
			pending = nil
			if classIdx >= 0 {
				facts.classes[classIdx].Methods = append(facts.classes[classIdx].Methods, name)
				continue
			}
			facts.functions = append(facts.functions, workflow.Function{
				Name: name, File: path, Parameters: lastTokens(m[2]), Line: i + 1,
			})
			continue
		}
		if m := javaImport.FindStringSubmatch(line); m != nil {
			facts.imports = append(facts.imports, javaPackage(m[1]))
		}
	}
	return facts
}

// javaPackage 取前两段作为依赖名，例如 org.springframework
func javaPackage(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ".")
}

// =============================================================================
// Go
// =============================================================================

var (
	goFunc        = regexp.MustCompile(`^func\s+(?:\(\s*(?:\w+\s+)?\*?(\w+)(?:\[[^\]]*\])?\s*\)\s*)?(\w+)(?:\[[^\]]*\])?\s*\(([^)]*)\)`)
	goType        = regexp.MustCompile(`^type\s+(\w+)(?:\[[^\]]*\])?\s+(struct|interface)\b`)
	goImportOne   = regexp.MustCompile(`^import\s+(?:\w+\s+)?"([^"]+)"`)
	goImportBlock = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`)
	goRoute       = regexp.MustCompile(`\.(HandleFunc|Handle|GET|POST|PUT|DELETE|PATCH|Get|Post|Put|Delete|Patch)\(\s*"([^"]+)"`)
)

func parseGo(path string, lines []string) fileFacts {
	var facts fileFacts
	classByName := make(map[string]int)
	methods := make(map[string][]string)
	inImports := false

	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "import ("):
			inImports = true
			continue
		case inImports && strings.HasPrefix(strings.TrimSpace(line), ")"):
			inImports = false
			continue
		case inImports:
			if m := goImportBlock.FindStringSubmatch(line); m != nil {
				facts.imports = append(facts.imports, m[1])
			}
			continue
		}

		if m := goImportOne.FindStringSubmatch(line); m != nil {
			facts.imports = append(facts.imports, m[1])
			continue
		}
		if m := goType.FindStringSubmatch(line); m != nil {
			facts.classes = append(facts.classes, workflow.Class{Name: m[1], File: path, Line: i + 1})
			classByName[m[1]] = len(facts.classes) - 1
			continue
		}
		if m := goFunc.FindStringSubmatch(line); m != nil {
			if m[1] != "" {
				methods[m[1]] = append(methods[m[1]], m[2])
				continue
			}
			facts.functions = append(facts.functions, workflow.Function{
				Name: m[2], File: path, Parameters: firstTokens(m[3]), Line: i + 1,
			})
			continue
		}
		if m := goRoute.FindStringSubmatch(line); m != nil {
			method, p := strings.ToUpper(m[1]), m[2]
			if method == "HANDLEFUNC" || method == "HANDLE" {
				method = "ANY"
				if verb, rest, ok := strings.Cut(p, " "); ok {
					method, p = verb, strings.TrimSpace(rest)
				}
			}
			facts.endpoints = append(facts.endpoints, workflow.Endpoint{Method: method, Path: p, File: path})
		}
	}

	// 方法挂到同文件的类型上，找不到接收者类型时按函数记录
	for _, recv := range slices.Sorted(maps.Keys(methods)) {
		names := methods[recv]
		if idx, ok := classByName[recv]; ok {
			facts.classes[idx].Methods = append(facts.classes[idx].Methods, names...)
			continue
		}
		for _, n := range names {
			facts.functions = append(facts.functions, workflow.Function{Name: recv + "." + n, File: path})
		}
	}
	return facts
}

// =============================================================================
// Ruby / PHP
// =============================================================================

var (
	rbClass   = regexp.MustCompile(`^\s*class\s+([\w:]+)(?:\s*<\s*([\w:]+))?`)
	rbDef     = regexp.MustCompile(`^\s*def\s+(?:self\.)?(\w+[?!]?)(?:\(([^)]*)\))?`)
	rbRequire = regexp.MustCompile(`^\s*require\s+['"]([^'"]+)['"]`)

	phpClass    = regexp.MustCompile(`\bclass\s+(\w+)(?:\s+extends\s+(\w+))?`)
	phpFunction = regexp.MustCompile(`function\s+(\w+)\s*\(([^)]*)\)`)
	phpUse      = regexp.MustCompile(`^\s*use\s+([\w\\]+)`)
)

func parseRuby(path string, lines []string) fileFacts {
	var facts fileFacts
	for i, line := range lines {
		if m := rbClass.FindStringSubmatch(line); m != nil {
			facts.classes = append(facts.classes, workflow.Class{
				Name: m[1], File: path, Inheritance: splitNames(m[2]), Line: i + 1,
			})
		} else if m := rbDef.FindStringSubmatch(line); m != nil {
			if n := len(facts.classes); n > 0 && strings.HasPrefix(line, " ") {
				facts.classes[n-1].Methods = append(facts.classes[n-1].Methods, m[1])
				continue
			}
			facts.functions = append(facts.functions, workflow.Function{
				Name: m[1], File: path, Parameters: splitNames(m[2]), Line: i + 1,
			})
		} else if m := rbRequire.FindStringSubmatch(line); m != nil {
			facts.imports = append(facts.imports, topModule(m[1], "/"))
		}
	}
	return facts
}

func parsePHP(path string, lines []string) fileFacts {
	var facts fileFacts
	for i, line := range lines {
		if m := phpClass.FindStringSubmatch(line); m != nil {
			facts.classes = append(facts.classes, workflow.Class{
				Name: m[1], File: path, Inheritance: splitNames(m[2]), Line: i + 1,
			})
		} else if m := phpFunction.FindStringSubmatch(line); m != nil {
			if n := len(facts.classes); n > 0 && strings.HasPrefix(line, " ") {
				facts.classes[n-1].Methods = append(facts.classes[n-1].Methods, m[1])
				continue
			}
			facts.functions = append(facts.functions, workflow.Function{
				Name: m[1], File: path, Parameters: splitNames(m[2]), Line: i + 1,
			})
		} else if m := phpUse.FindStringSubmatch(line); m != nil {
			facts.imports = append(facts.imports, topModule(m[1], `\`))
		}
	}
	return facts
}

// =============================================================================
// helpers
// =============================================================================

func splitNames(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// lastTokens "String name, int n" → [name n]
func lastTokens(raw string) []string {
	var out []string
	for _, p := range splitNames(raw) {
		f := strings.Fields(p)
		out = append(out, f[len(f)-1])
	}
	return out
}

// firstTokens "ctx context.Context, n int" → [ctx n]
func firstTokens(raw string) []string {
	var out []string
	for _, p := range splitNames(raw) {
		out = append(out, strings.Fields(p)[0])
	}
	return out
}

func topModule(name, sep string) string {
	head, _, _ := strings.Cut(name, sep)
	return head
}
