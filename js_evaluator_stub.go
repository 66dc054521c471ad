//go:build !js_eval

package snapshot

// NewJSEvaluator is unavailable without the js_eval build tag.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSSettings(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
