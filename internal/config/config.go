// Package config holds the server configuration delivered through the
// client's initializationOptions. Fields present in the options override
// the Ada defaults; everything else keeps them.
package config

import (
	"encoding/json"
	"fmt"
	"io"
)

type Config struct {
	// Tree-sitter queries driving the analysis context.
	DefiningNamesQuery string `json:"defining_names_query"`
	WithClausesQuery   string `json:"with_clauses_query"`
	FoldingQuery       string `json:"folding_query"`

	// Recognized Ada source extensions.
	FileExtensions []string `json:"file_extensions"`

	// Per-document cap on published diagnostics; excess findings are
	// dropped in detection order.
	MaxDiagnostics int `json:"max_diagnostics"`

	// Parser pool size for one-shot parses during indexing.
	ParserPoolSize int `json:"parser_pool_size"`
}

var defaultConfig = Config{
	DefiningNamesQuery: `
        (package_declaration name: (identifier) @package)
        (package_body name: (identifier) @package)
        (subprogram_body (procedure_specification name: (identifier) @procedure))
        (subprogram_body (function_specification name: (identifier) @function))
        (subprogram_declaration (procedure_specification name: (identifier) @procedure))
        (subprogram_declaration (function_specification name: (identifier) @function))
        (full_type_declaration name: (identifier) @type)
        (object_declaration (identifier) @object)
    `,
	WithClausesQuery: `
        (with_clause (identifier) @unit)
        (with_clause (selected_component) @unit)
    `,
	FoldingQuery: `
        (package_declaration) @fold
        (package_body) @fold
        (subprogram_body) @fold
        (if_statement) @fold
        (loop_statement) @fold
        (case_statement) @fold
    `,
	FileExtensions: []string{".ads", ".adb"},
	MaxDiagnostics: 20,
	ParserPoolSize: 10,
}

// Load merges the client-supplied options over the defaults. Only fields
// present in src overwrite.
func Load(v any) (Config, error) {
	cfg := defaultConfig

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}

	return cfg, nil
}

// LoadFromJSON reads JSON from r into a Config.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := defaultConfig

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
