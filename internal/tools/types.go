// Package tools holds the builtin functions a manifest can expose as its
// module, and the provider-agnostic schema types used to describe them to
// an LLM.
package tools

// ToolTypeFunction is the standard type for function-based tools.
const ToolTypeFunction = "function"

// Tool defines the schema for a function that can be described to an LLM.
type Tool struct {
	// Type is almost always "function".
	Type string `json:"type" yaml:"type,omitempty"`
	// Function holds the detailed definition of the function.
	Function Function `json:"function" yaml:"function"`
}

// Function defines the name, description, and parameters of a callable
// function. Manifests list the same structure under `functions`.
type Function struct {
	// Name is the name the LLM uses in its function call.
	Name string `json:"name" yaml:"name"`
	// Description is what the LLM reads to decide when to call the function.
	Description string `json:"description" yaml:"description"`
	// Parameters defines the accepted arguments as a JSON Schema.
	Parameters JSONSchema `json:"parameters" yaml:"parameters"`
}

// JSONSchema is the subset of JSON Schema used for function parameters.
type JSONSchema struct {
	// Type is "object" for the top-level parameters.
	Type string `json:"type" yaml:"type"`
	// Description explains what a specific parameter is for.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Enum restricts a parameter to fixed values.
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	// Properties describes the parameters of an object.
	Properties map[string]*JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	// Items describes array elements.
	Items *JSONSchema `json:"items,omitempty" yaml:"items,omitempty"`
	// Required lists mandatory parameter names.
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`
}

// NewFunctionTool is a helper that creates a Tool of type "function".
func NewFunctionTool(name, description string, parameters JSONSchema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
