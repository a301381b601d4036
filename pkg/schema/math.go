package schema

// MathOperation selects how a derived field folds its dependencies.
type MathOperation string

const (
	MathSum      MathOperation = "sum"
	MathSubtract MathOperation = "subtract"
	MathMultiply MathOperation = "multiply"
	MathDivide   MathOperation = "divide"
)

// Normalize maps accepted aliases onto the canonical operation.
func (op MathOperation) Normalize() MathOperation {
	switch op {
	case "add", "Sum", "SUM":
		return MathSum
	case "Subtract", "minus":
		return MathSubtract
	case "Multiply", "times":
		return MathMultiply
	case "Divide":
		return MathDivide
	default:
		return op
	}
}

// Valid reports whether op (after normalisation) is supported.
func (op MathOperation) Valid() bool {
	switch op.Normalize() {
	case MathSum, MathSubtract, MathMultiply, MathDivide:
		return true
	default:
		return false
	}
}

// Math declares a computed value. A question carrying Math is a derived field
// and never accepts direct input.
type Math struct {
	Operation MathOperation `json:"operation"`
	DependsOn []string      `json:"dependsOn"`
}

// Rewrite returns a copy of m with every dependency passed through fn.
func (m Math) Rewrite(fn func(string) string) Math {
	deps := make([]string, len(m.DependsOn))
	for i, dep := range m.DependsOn {
		deps[i] = fn(dep)
	}
	return Math{Operation: m.Operation, DependsOn: deps}
}
