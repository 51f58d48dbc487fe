package tool

import (
	"context"
	"testing"
)

func TestCalculator_Basic(t *testing.T) {
	c := Calculator{}
	out := c.Execute(context.Background(), map[string]any{"expression": "2+2"})
	if out.IsError {
		t.Fatalf("unexpected error: %s", out.Content)
	}
	if out.Content != "2 + 2 = 4" {
		t.Fatalf("got %q", out.Content)
	}
}

func TestCalculator_Precedence(t *testing.T) {
	c := Calculator{}
	out := c.Execute(context.Background(), map[string]any{"expression": "2 + 3 * 4"})
	if out.IsError || out.Content != "2 + 3 * 4 = 14" {
		t.Fatalf("got %+v", out)
	}
}

func TestCalculator_DivisionByZero(t *testing.T) {
	c := Calculator{}
	out := c.Execute(context.Background(), map[string]any{"expression": "1/0"})
	if !out.IsError {
		t.Fatalf("expected division-by-zero error")
	}
}

func TestCalculator_InvalidArgs(t *testing.T) {
	c := Calculator{}
	out := c.Execute(context.Background(), map[string]any{})
	if !out.IsError {
		t.Fatalf("expected invalid_arguments error")
	}
}

func TestCalculator_NeverPanics(t *testing.T) {
	c := Calculator{}
	inputs := []any{"2+", "((", "1 2 3", 42, nil}
	for _, in := range inputs {
		args := map[string]any{"expression": in}
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Execute panicked on %v: %v", in, r)
				}
			}()
			_ = c.Execute(context.Background(), args)
		}()
	}
}
