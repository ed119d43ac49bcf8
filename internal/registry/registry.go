// Package registry holds the catalog of job templates and renders them
// into executable plans.
package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/quantops/pipedash/internal/config"
)

// ErrUnknownJob is returned when a job ID is not in the catalog.
var ErrUnknownJob = errors.New("unknown job")

// ErrJobDisabled is matched (via errors.Is) by DisabledError.
var ErrJobDisabled = errors.New("job disabled")

// ErrInvalidParameter is returned only for parameters that cannot be
// recovered by default substitution (required output paths).
var ErrInvalidParameter = errors.New("invalid parameter")

// DisabledError reports which required resources are missing for a job.
type DisabledError struct {
	JobID   string
	Missing []string
}

func (e *DisabledError) Error() string {
	return fmt.Sprintf("job %s disabled: missing %s", e.JobID, strings.Join(e.Missing, ", "))
}

func (e *DisabledError) Is(target error) bool { return target == ErrJobDisabled }

// Registry is the catalog of job templates. It is read-only after creation.
type Registry struct {
	jobs []config.Job
	byID map[string]*config.Job

	// statFn reports whether a required resource exists. Injectable for tests.
	statFn func(path string) bool
}

// New creates a Registry from the configured job catalog.
func New(jobs []config.Job) *Registry {
	r := &Registry{
		jobs: jobs,
		byID: make(map[string]*config.Job, len(jobs)),
		statFn: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
	for i := range r.jobs {
		r.byID[r.jobs[i].ID] = &r.jobs[i]
	}
	return r
}

// WithStatFn overrides the resource existence check. Used by tests.
func (r *Registry) WithStatFn(fn func(string) bool) *Registry {
	r.statFn = fn
	return r
}

// ListDefinitions returns every job template annotated with live
// availability: a job is disabled if any required resource is missing.
func (r *Registry) ListDefinitions() []DefinitionStatus {
	out := make([]DefinitionStatus, 0, len(r.jobs))
	for i := range r.jobs {
		job := &r.jobs[i]
		missing := r.missingResources(job)

		ds := DefinitionStatus{
			ID:       job.ID,
			Label:    job.Label,
			Group:    job.Group,
			Schedule: job.Schedule,
			Enabled:  len(missing) == 0,
			Missing:  missing,
			Params:   make([]ParamInfo, 0, len(job.Params)),
		}
		if !ds.Enabled {
			ds.Reason = fmt.Sprintf("missing resources: %s", strings.Join(missing, ", "))
		}
		for _, p := range job.Params {
			ds.Params = append(ds.Params, ParamInfo{
				Name:    p.Name,
				Type:    p.Type,
				Default: p.Default,
				Choices: p.Choices,
			})
		}
		out = append(out, ds)
	}
	return out
}

// Render resolves raw parameters against a job template and produces an
// ExecutionPlan. It fails with ErrUnknownJob for absent IDs, DisabledError
// when required resources are missing, and ErrInvalidParameter when a
// required path parameter is absent or empty. All other coercion failures
// recover to the declared default.
func (r *Registry) Render(jobID string, raw map[string]any) (ExecutionPlan, error) {
	job, ok := r.byID[jobID]
	if !ok {
		return ExecutionPlan{}, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}

	if missing := r.missingResources(job); len(missing) > 0 {
		return ExecutionPlan{}, &DisabledError{JobID: jobID, Missing: missing}
	}

	plan := ExecutionPlan{
		JobID:        jobID,
		Workdir:      job.Workdir,
		Env:          make(map[string]string, len(job.Env)),
		PublicParams: make(map[string]any, len(job.Params)),
	}
	for k, v := range job.Env {
		plan.Env[k] = v
	}

	if job.Interpreter != "" {
		plan.Argv = append(plan.Argv, job.Interpreter)
	}
	plan.Argv = append(plan.Argv, job.Script)

	for _, p := range job.Params {
		rawVal, have := raw[p.Name]
		val := coerceParam(p, rawVal, have)

		if p.Type == "path" && p.Required && toString(val) == "" {
			return ExecutionPlan{}, fmt.Errorf("%w: %s requires a non-empty path", ErrInvalidParameter, p.Name)
		}

		if p.Flag != "" {
			plan.Argv = append(plan.Argv, p.Flag, formatArg(val))
		} else {
			plan.Argv = append(plan.Argv, formatArg(val))
		}

		if !p.Secret {
			plan.PublicParams[p.Name] = val
		}
	}

	return plan, nil
}

// missingResources lists the script and extra required resources that do
// not exist on disk.
func (r *Registry) missingResources(job *config.Job) []string {
	var missing []string
	for _, path := range append([]string{job.Script}, job.Requires...) {
		if path != "" && !r.statFn(path) {
			missing = append(missing, path)
		}
	}
	return missing
}
