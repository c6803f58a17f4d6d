package reconcile

import "github.com/sells-group/strategy-pipeline/internal/model"

// Reconcile runs the full reconciliation pipeline for one company: merge
// contributions from every successful source, then layer gap inference
// and the CNPJ validation penalty on top.
func Reconcile(results map[string]model.SourceResult) Result {
	result := Merge(results)
	ApplyGapInference(result.Fields, result.Confidence)
	ApplyCNPJPenalty(result.Fields, result.Confidence)
	return result
}
