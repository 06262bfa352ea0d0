//go:build !js_eval

package intake

// NewJSEvaluator is unavailable without the js_eval build tag and returns nil.
// NewEvaluator reports ErrEngineUnavailable instead of handing out the nil.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
