package tools

import (
	"context"
	"fmt"

	"github.com/dileep-u-k/function-gateway/internal/function"
)

// CalculatorTool performs basic arithmetic.
type CalculatorTool struct{}

var _ ToolExecutor = (*CalculatorTool)(nil)

func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

// Definition asks for structured operands instead of an expression string.
func (ct *CalculatorTool) Definition() Tool {
	return NewFunctionTool(
		"calculate",
		"Performs a basic arithmetic calculation (add, subtract, multiply, divide).",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"operand1": {
					Type:        "number",
					Description: "The first number in the calculation.",
				},
				"operator": {
					Type:        "string",
					Description: "The operator to use.",
					Enum:        []string{"+", "-", "*", "/"},
				},
				"operand2": {
					Type:        "number",
					Description: "The second number in the calculation.",
				},
			},
			Required: []string{"operand1", "operator", "operand2"},
		},
	)
}

// Execute returns the result as a mapping with the expression and its value.
// Division by zero and unknown operators are reported as a text result the
// LLM can relay.
func (ct *CalculatorTool) Execute(_ context.Context, arguments function.Arguments) (function.Output, error) {
	var args struct {
		Operand1 float64 `json:"operand1"`
		Operand2 float64 `json:"operand2"`
		Operator string  `json:"operator"`
	}
	if err := bindArguments(arguments, &args); err != nil {
		return function.Output{}, fmt.Errorf("invalid arguments for calculator: %w", err)
	}

	var result float64
	switch args.Operator {
	case "+":
		result = args.Operand1 + args.Operand2
	case "-":
		result = args.Operand1 - args.Operand2
	case "*":
		result = args.Operand1 * args.Operand2
	case "/":
		if args.Operand2 == 0 {
			return function.Output{Result: function.TextResult("Error: Division by zero is not allowed.")}, nil
		}
		result = args.Operand1 / args.Operand2
	default:
		return function.Output{Result: function.TextResult(
			fmt.Sprintf("Error: Unsupported operator '%s'. Please use +, -, *, or /.", args.Operator),
		)}, nil
	}

	return function.Output{Result: function.MapResult(map[string]any{
		"expression": fmt.Sprintf("%g %s %g", args.Operand1, args.Operator, args.Operand2),
		"result":     result,
	})}, nil
}
