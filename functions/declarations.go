// Package functions loads the tool declarations handed to Gemini at setup.
// Tools run in the host: it answers tool_call messages with sendToolMessage
// commands.
package functions

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"
)

// Declaration is one tool in the file format shared with EVI configs:
// parameters may be a JSON schema object or that schema encoded as a string.
type Declaration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

// Load reads declarations from a JSON file. An empty path means no tools.
func Load(path string) ([]*genai.Tool, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of declarations into a single Gemini tool.
func Parse(data []byte) ([]*genai.Tool, error) {
	var decls []Declaration
	if err := sonic.Unmarshal(data, &decls); err != nil {
		return nil, fmt.Errorf("invalid tools file: %w", err)
	}
	if len(decls) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(decls))
	out := make([]*genai.FunctionDeclaration, 0, len(decls))
	for i, d := range decls {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("tools[%d]: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("tools[%d]: duplicate name %q", i, name)
		}
		seen[name] = true

		params, err := schema(d.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tools[%d]: %w", i, err)
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:                 name,
			Description:          d.Description,
			ParametersJsonSchema: params,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: out}}, nil
}

func schema(params any) (any, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(p) == "" {
			return nil, nil
		}
		var decoded map[string]any
		if err := sonic.UnmarshalString(p, &decoded); err != nil {
			return nil, fmt.Errorf("parameters is not a json schema: %w", err)
		}
		return decoded, nil
	case map[string]any:
		return p, nil
	default:
		return nil, fmt.Errorf("parameters must be an object or a string")
	}
}
