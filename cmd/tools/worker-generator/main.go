// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/spf13/pflag"

	"es-query-studio/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name         string
	PackageName  string
	TaskType     string
	Description  string
	Timeout      string
	InputFields  []Field
	OutputFields []Field
}

type Field struct {
	GoName   string
	GoType   string
	JSONName string
	Optional bool
}

// fieldsFromSchema lists the top-level properties of a JSON schema in name
// order.
func fieldsFromSchema(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if req, ok := schema["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		fields = append(fields, Field{
			GoName:   goName(name),
			GoType:   goTypeFromJSONType(details["type"]),
			JSONName: name,
			Optional: !required[name],
		})
	}
	return fields
}

// goTypeFromJSONType maps JSON schema types to Go types
func goTypeFromJSONType(jsonType interface{}) string {
	switch jsonType {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	}
	return "interface{}"
}

// goName turns environmentId into EnvironmentID and indexName into IndexName.
func goName(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if strings.HasSuffix(s, "Id") {
		s = strings.TrimSuffix(s, "Id") + "ID"
	}
	return s
}

const configTemplate = `// internal/workers/{{ .Dir }}/config.go
package {{ .PackageName }}

import (
	"time"

	"es-query-studio/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: {{ .TimeoutExpr }},
	}
}

func ConfigFrom(w config.WorkerConfig) *Config {
	cfg := LoadConfig()
	if w.Timeout > 0 {
		cfg.Timeout = config.GetDuration(w.Timeout)
	}
	return cfg
}
`

const modelsTemplate = `// internal/workers/{{ .Dir }}/models.go
package {{ .PackageName }}

type Input struct {
{{- range .InputFields }}
	{{ .GoName }} {{ .GoType }} ` + "`json:\"{{ .JSONName }}{{ if .Optional }},omitempty{{ end }}\"`" + `
{{- end }}
}

type Output struct {
{{- range .OutputFields }}
	{{ .GoName }} {{ .GoType }} ` + "`json:\"{{ .JSONName }}\"`" + `
{{- end }}
}
`

const handlerTemplate = `package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"es-query-studio/internal/common/camunda"
	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
)

const (
	TaskType = "{{ .TaskType }}"
)

type Handler struct {
	config       *Config
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job,
			errors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	camunda.CompleteJob(context.Background(), client, job, output, h.logger)
}

// Execute: {{ .Description }}
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}
	return nil, errors.NewInternalError(fmt.Errorf("%s is not implemented", TaskType))
}
`

type templateData struct {
	WorkerData
	Dir         string
	TimeoutExpr string
}

func render(name, tmpl string, data templateData) ([]byte, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}
	return src, nil
}

// timeoutExpr renders a registry timeout such as "30s" as Go source.
func timeoutExpr(timeout string) string {
	a := registry.Activity{Timeout: timeout}
	d := a.TimeoutOr(0)
	if d <= 0 || d%1e9 != 0 {
		return "30 * time.Second"
	}
	return fmt.Sprintf("%d * time.Second", int64(d/1e9))
}

func main() {
	taskType := pflag.String("task", "", "task type from the registry (e.g. load-oracle-data)")
	outputDir := pflag.String("output", "./internal/workers/", "root directory for generated workers")
	registryPath := pflag.String("registry", "", "registry override file; empty uses the built-in registry")
	force := pflag.Bool("force", false, "overwrite existing files")
	pflag.Parse()

	if *taskType == "" {
		fmt.Println("Usage: worker-generator --task <task-type> [--output <dir>] [--registry <path>]")
		fmt.Println("\nExample:")
		fmt.Println("  go run ./cmd/tools/worker-generator --task reindex-index")
		os.Exit(1)
	}

	reg := registry.Default()
	if *registryPath != "" {
		var err error
		if reg, err = registry.LoadRegistry(*registryPath); err != nil {
			fmt.Printf("Error loading registry from %s: %v\n", *registryPath, err)
			os.Exit(1)
		}
	}

	activity, ok := reg.Find(*taskType)
	if !ok {
		fmt.Printf("Task type '%s' not found in the registry\n", *taskType)
		os.Exit(1)
	}

	dir := filepath.Join(strings.ToLower(activity.Category), activity.TaskType)
	data := templateData{
		WorkerData: WorkerData{
			Name:         activity.DisplayName,
			PackageName:  strings.ReplaceAll(activity.TaskType, "-", ""),
			TaskType:     activity.TaskType,
			Description:  activity.Description,
			Timeout:      activity.Timeout,
			InputFields:  fieldsFromSchema(activity.InputSchema),
			OutputFields: fieldsFromSchema(activity.OutputSchema),
		},
		Dir:         filepath.ToSlash(dir),
		TimeoutExpr: timeoutExpr(activity.Timeout),
	}

	workerDir := filepath.Join(*outputDir, dir)
	if err := os.MkdirAll(workerDir, 0o755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}

	files := []struct{ name, tmpl string }{
		{"config.go", configTemplate},
		{"models.go", modelsTemplate},
		{"handler.go", handlerTemplate},
	}
	for _, f := range files {
		path := filepath.Join(workerDir, f.name)
		if _, err := os.Stat(path); err == nil && !*force {
			fmt.Printf("skipped %s (exists; use --force)\n", path)
			continue
		}
		src, err := render(f.name, f.tmpl, data)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, src, 0o644); err != nil {
			fmt.Printf("Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("generated %s\n", path)
	}

	fmt.Printf("\nWorker scaffold generated at %s\n", workerDir)
	fmt.Println("Next: implement Execute, add handler_test.go, register the handler in cmd/query-studio/main.go.")
}
