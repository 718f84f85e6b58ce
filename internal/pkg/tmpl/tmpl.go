// Package tmpl renders Liquid templates with a parse cache.
package tmpl

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// Renderer renders Liquid templates. Parsed templates are cached by key.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// New creates a renderer with the default filter registered.
func New() *Renderer {
	engine := liquid.NewEngine()

	// {{ name | default: "there" }}
	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	return &Renderer{engine: engine}
}

// Parse compiles src and returns any syntax error.
func (r *Renderer) Parse(src string) error {
	_, err := r.engine.ParseString(src)
	if err != nil {
		return err
	}
	return nil
}

// Render renders src with vars. A non-empty key caches the parsed template;
// callers must use distinct keys for distinct sources.
func (r *Renderer) Render(key, src string, vars map[string]interface{}) (string, error) {
	if key != "" {
		if cached, ok := r.cache.Load(key); ok {
			return render(cached.(*liquid.Template), vars)
		}
	}

	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", key, err)
	}
	if key != "" {
		r.cache.Store(key, tpl)
	}
	return render(tpl, vars)
}

func render(tpl *liquid.Template, vars map[string]interface{}) (string, error) {
	out, err := tpl.RenderString(vars)
	if err != nil {
		return "", err
	}
	return out, nil
}
