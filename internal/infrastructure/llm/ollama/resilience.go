package ollama

import (
	"context"

	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/resilience"
)

func call[T any](ctx context.Context, c *Client, operation string, fn func(context.Context) (T, error)) (T, error) {
	out, err := resilience.Call(ctx, c.executor, "ollama."+operation, fn, resilience.ClassifyHTTP)
	if err != nil {
		var zero T
		return zero, resilience.WrapTemporary("ollama "+operation, err, resilience.ClassifyHTTP)
	}
	return out, nil
}
