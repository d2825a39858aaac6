package expression

import "testing"

func TestIsExpression(t *testing.T) {
	cases := map[string]bool{
		"={{ 1 + 1 }}": true,
		"plain string": false,
		"{{ 1 + 1 }}":  false,
	}
	for in, want := range cases {
		if got := IsExpression(in); got != want {
			t.Errorf("IsExpression(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEvaluateArithmeticAndPath(t *testing.T) {
	p := NewParser()
	ctx := NewContext()
	ctx.SetNodeData("A", map[string]interface{}{"value": 1.0})

	v, err := p.Evaluate("A.value + 1", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(float64) != 2 {
		t.Errorf("got %v, want 2", v)
	}
}

func TestEvaluateChain(t *testing.T) {
	p := NewParser()
	ctx := NewContext()
	ctx.SetNodeData("A", map[string]interface{}{"value": 1.0})

	bVal, err := p.Evaluate("A.value + 1", ctx)
	if err != nil {
		t.Fatal(err)
	}
	ctx.SetNodeData("B", map[string]interface{}{"value": bVal})

	cVal, err := p.Evaluate("B.value * 10", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cVal.(float64) != 20 {
		t.Errorf("got %v, want 20", cVal)
	}
}

func TestEvaluateStringConcatenation(t *testing.T) {
	p := NewParser()
	ctx := NewContext()
	ctx.SetTrigger(map[string]interface{}{"name": "world"})

	v, err := p.Evaluate(`"hello " + trigger.name`, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != "hello world" {
		t.Errorf("got %v, want 'hello world'", v)
	}
}

func TestEvaluateComparisonAndBoolean(t *testing.T) {
	p := NewParser()
	ctx := NewContext()
	ctx.SetNodeData("A", map[string]interface{}{"count": 5.0})

	v, err := p.Evaluate("A.count > 3 && A.count < 10", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != true {
		t.Errorf("got %v, want true", v)
	}
}

func TestEvaluateNullCoalescing(t *testing.T) {
	p := NewParser()
	ctx := NewContext()

	v, err := p.Evaluate(`null ?? "fallback"`, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != "fallback" {
		t.Errorf("got %v, want 'fallback'", v)
	}
}

func TestEvaluateUnresolvedIdentifier(t *testing.T) {
	p := NewParser()
	ctx := NewContext()

	_, err := p.Evaluate("missingNode.field", ctx)
	if err == nil {
		t.Fatal("expected an error for an unresolved identifier")
	}
	exprErr, ok := err.(*ExpressionError)
	if !ok {
		t.Fatalf("expected *ExpressionError, got %T", err)
	}
	if exprErr.Path == "" {
		t.Error("expected the offending path to be recorded")
	}
}

func TestEvaluateFunction(t *testing.T) {
	p := NewParser()
	ctx := NewContext()

	v, err := p.Evaluate(`uppercase("abc")`, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != "ABC" {
		t.Errorf("got %v, want ABC", v)
	}
}

func TestEvaluateValueDoesNotRecurse(t *testing.T) {
	p := NewParser()
	ctx := NewContext()
	ctx.SetNodeData("A", map[string]interface{}{"value": 1.0})

	nested := map[string]interface{}{
		"inner": "={{ A.value }}",
	}
	v, err := p.EvaluateValue(nested, ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Non-string top-level values pass through unchanged; the nested
	// expression marker is left unevaluated.
	m, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("expected a map to pass through unchanged, got %T", v)
	}
	if m["inner"] != "={{ A.value }}" {
		t.Errorf("nested expression should not have been evaluated, got %v", m["inner"])
	}
}

func TestEvaluateParameters(t *testing.T) {
	p := NewParser()
	ctx := NewContext()
	ctx.SetNodeData("A", map[string]interface{}{"value": 2.0})

	params := map[string]interface{}{
		"literal":    "plain",
		"expression": "={{ A.value * 2 }}",
	}
	resolved, err := p.EvaluateParameters(params, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if resolved["literal"] != "plain" {
		t.Errorf("literal should pass through unchanged, got %v", resolved["literal"])
	}
	if resolved["expression"].(float64) != 4 {
		t.Errorf("got %v, want 4", resolved["expression"])
	}
}
