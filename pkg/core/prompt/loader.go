package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"text/template"

	"finpulse/pkg/core/logging"
)

//go:embed defaults
var defaults embed.FS

// LoadDefaults registers the prompts compiled into the binary.
func LoadDefaults(r *Registry) error {
	sub, err := fs.Sub(defaults, "defaults")
	if err != nil {
		return err
	}
	return loadPrompts(r, sub)
}

// LoadFromDirectory loads all prompts from a directory, overriding defaults with the same ID.
// Expected structure:
//
//	baseDir/
//	  category1/
//	    prompt1.json
//	  category2/
//	    prompt2.json
func LoadFromDirectory(r *Registry, baseDir string) error {
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		return fmt.Errorf("prompts directory not found: %s", baseDir)
	}
	before := r.Count()
	if err := loadPrompts(r, os.DirFS(baseDir)); err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	logging.For("prompt").WithField("dir", baseDir).
		Infof("Loaded prompts (%d registered, %d before)", r.Count(), before)
	return nil
}

// loadPrompts recursively loads all .json files
func loadPrompts(r *Registry, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		var pt PromptTemplate
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", p, err)
		}

		// Auto-generate ID from path if not specified
		if pt.ID == "" {
			pt.ID = generateIDFromPath(p)
		}
		if pt.Category == "" {
			pt.Category = detectCategory(p)
		}

		if err := r.Register(&pt); err != nil {
			return fmt.Errorf("failed to register %s: %w", pt.ID, err)
		}
		return nil
	})
}

// generateIDFromPath creates a prompt ID from the file path
// e.g., "assessment/sme_audit.json" -> "assessment.sme_audit"
func generateIDFromPath(p string) string {
	return strings.ReplaceAll(strings.TrimSuffix(p, ".json"), "/", ".")
}

func detectCategory(p string) string {
	parts := strings.Split(p, "/")
	if len(parts) > 1 {
		return parts[0]
	}
	return "default"
}

var funcs = template.FuncMap{
	// money renders an amount without exponent or trailing zeros.
	"money": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
}

// RenderUserPrompt executes the user prompt template with the given context.
// Missing variables are an error rather than "<no value>".
func RenderUserPrompt(pt *PromptTemplate, ctx *PromptExecutionContext) (string, error) {
	if pt.UserPromptTmpl == "" {
		return "", nil
	}

	vars := make(map[string]interface{}, len(pt.Variables)+len(ctx.Variables))
	for _, v := range pt.Variables {
		if v.Default != "" {
			vars[v.Name] = v.Default
		}
	}
	for k, v := range ctx.Variables {
		vars[k] = v
	}
	for _, v := range pt.Variables {
		if _, ok := vars[v.Name]; v.Required && !ok {
			return "", fmt.Errorf("prompt %s: missing required variable %s", pt.ID, v.Name)
		}
	}

	tmpl, err := template.New(pt.ID).Funcs(funcs).Option("missingkey=error").Parse(pt.UserPromptTmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
