// Package tools defines tool contracts, the registry and the built-in tools.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - Registry: explicit name -> tool map owned by the runner.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - Tool.Invoke: schema validation and handler error isolation.
//   - File tools: read_file, list_files (non-recursive), edit_file, glob, get_root.
//   - Command tools declared in a tools.yaml manifest.
package tools
