// Package apperr defines the pipeline's typed error taxonomy: distinct
// types so callers can tell a retryable transport failure from a model
// refusal from a fatal stage failure, instead of string-matching error
// messages.
package apperr

import (
	"fmt"

	"github.com/sells-group/strategy-pipeline/internal/resilience"
)

// TransientExternal is a retryable failure talking to an external
// service. It wraps internal/resilience.TransientError rather than
// redefining it, since the HTTP transport layer already classifies
// retryable failures there.
type TransientExternal = resilience.TransientError

// ErrCircuitOpen is returned when a circuit breaker rejects a call.
// Aliased to resilience.ErrCircuitOpen's sentinel rather than duplicated.
var ErrCircuitOpen = resilience.ErrCircuitOpen

// ContentPolicyRefusal means a model declined to answer rather than
// producing malformed output — distinct from InvalidLLMOutput so a
// stage can react differently (e.g. skip straight to a fallback model).
type ContentPolicyRefusal struct {
	Stage string
	Model string
}

func (e *ContentPolicyRefusal) Error() string {
	return fmt.Sprintf("%s: model %s refused to answer", e.Stage, e.Model)
}

// InvalidLLMOutput means a model's response could not be parsed as the
// expected JSON shape after all retries were exhausted.
type InvalidLLMOutput struct {
	Stage string
	Model string
	Cause error
}

func (e *InvalidLLMOutput) Error() string {
	return fmt.Sprintf("%s: model %s produced invalid output: %v", e.Stage, e.Model, e.Cause)
}

func (e *InvalidLLMOutput) Unwrap() error {
	return e.Cause
}

// ValidationError records a post-hoc validation finding (e.g. a
// hallucination check) that cannot be auto-repaired in context. It is
// logging-only: constructing one never fails a pipeline run by itself.
type ValidationError struct {
	Stage   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed for %s: %s", e.Stage, e.Field, e.Message)
}

// ConfigurationError is a fatal startup-time configuration problem.
// config.Load and Validate return eris-wrapped errors, not this type.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Message
}

// FatalPipelineError marks a Stage 1 or Stage 3 failure that the
// orchestrator cannot degrade around: Analyse returns it to the caller
// instead of a result.
type FatalPipelineError struct {
	FailedStage string
	Cause       error
}

func (e *FatalPipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at stage %s: %v", e.FailedStage, e.Cause)
}

func (e *FatalPipelineError) Unwrap() error {
	return e.Cause
}
