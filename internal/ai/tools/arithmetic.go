package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/sashabaranov/go-openai/jsonschema"
)

var ErrDivideByZero = errors.New("cannot divide by zero")

// ArithmeticArgs represents the arguments for the arithmetic tools. Numbers
// are kept as written so large integers do not lose precision.
type ArithmeticArgs struct {
	A json.Number `json:"a"`
	B json.Number `json:"b"`
}

// ArithmeticTool applies a binary integer operation to a and b. Integers
// are arbitrary precision.
type ArithmeticTool struct {
	BaseTool
	op func(a, b *big.Int) (string, error)
}

func newArithmeticTool(name, description string, op func(a, b *big.Int) (string, error)) *ArithmeticTool {
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"a": {Type: jsonschema.Integer, Description: "first int"},
			"b": {Type: jsonschema.Integer, Description: "second int"},
		},
		Required: []string{"a", "b"},
	}
	return &ArithmeticTool{
		BaseTool: BaseTool{
			ToolName:        name,
			ToolDescription: description,
			ToolParameters:  params,
		},
		op: op,
	}
}

func NewAddTool() *ArithmeticTool {
	return newArithmeticTool("add", "Add two numbers.", func(a, b *big.Int) (string, error) {
		return new(big.Int).Add(a, b).String(), nil
	})
}

func NewSubtractTool() *ArithmeticTool {
	return newArithmeticTool("subtract", "Subtract two numbers.", func(a, b *big.Int) (string, error) {
		return new(big.Int).Sub(a, b).String(), nil
	})
}

func NewMultiplyTool() *ArithmeticTool {
	return newArithmeticTool("multiply", "Multiply two numbers.", func(a, b *big.Int) (string, error) {
		return new(big.Int).Mul(a, b).String(), nil
	})
}

// NewDivideTool returns the exact quotient when it is an integer and a
// float64 rendering otherwise.
func NewDivideTool() *ArithmeticTool {
	return newArithmeticTool("divide", "Divide two numbers.", func(a, b *big.Int) (string, error) {
		if b.Sign() == 0 {
			return "", ErrDivideByZero
		}
		q := new(big.Rat).SetFrac(a, b)
		if q.IsInt() {
			return q.Num().String(), nil
		}
		f, _ := q.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	})
}

// NewModulusTool follows floored modulo so the sign of the result matches b.
func NewModulusTool() *ArithmeticTool {
	return newArithmeticTool("modulus", "Get the modulus of two numbers.", func(a, b *big.Int) (string, error) {
		if b.Sign() == 0 {
			return "", ErrDivideByZero
		}
		m := new(big.Int).Rem(a, b)
		if m.Sign() != 0 && m.Sign() != b.Sign() {
			m.Add(m, b)
		}
		return m.String(), nil
	})
}

// ArithmeticTools returns add, subtract, multiply, divide and modulus.
func ArithmeticTools() []Tool {
	return []Tool{
		NewAddTool(),
		NewSubtractTool(),
		NewMultiplyTool(),
		NewDivideTool(),
		NewModulusTool(),
	}
}

func (t *ArithmeticTool) Execute(_ context.Context, args string) (string, error) {
	var params ArithmeticArgs
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	a, err := toInt("a", params.A)
	if err != nil {
		return "", err
	}
	b, err := toInt("b", params.B)
	if err != nil {
		return "", err
	}
	return t.op(a, b)
}

// toInt parses an integer operand. Integral values written with a fraction
// or exponent, like 6.0 or 1e19, are accepted and converted exactly.
func toInt(name string, v json.Number) (*big.Int, error) {
	if v == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	if n, ok := new(big.Int).SetString(v.String(), 10); ok {
		return n, nil
	}
	r, ok := new(big.Rat).SetString(v.String())
	if !ok || !r.IsInt() {
		return nil, fmt.Errorf("%s must be an integer, got %s", name, v)
	}
	return new(big.Int).Set(r.Num()), nil
}
