package workflow

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/BaSui01/docflow/repo"
	"github.com/BaSui01/docflow/types"
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateRequest checks a generation request and names the offending field.
func ValidateRequest(req Request) error {
	if _, err := repo.ParseURL(req.RepositoryURL); err != nil {
		return types.NewValidationError("repository_url", err.Error()).WithCause(err)
	}
	if !projectIDPattern.MatchString(req.ProjectID) {
		return types.NewValidationError("project_id",
			"project_id must be non-empty and contain only letters, digits, '-' or '_'")
	}
	if len(req.OutputFormats) == 0 {
		return types.NewValidationError("output_formats", "at least one output format is required")
	}
	for _, f := range req.OutputFormats {
		if !slices.Contains(KnownFormats, f) {
			return types.NewValidationError("output_formats",
				fmt.Sprintf("unsupported output format %q", f))
		}
	}
	if !slices.Contains(KnownAudiences, req.TargetAudience) {
		return types.NewValidationError("target_audience",
			fmt.Sprintf("unsupported target audience %q", req.TargetAudience))
	}
	for _, l := range req.TranslationLanguages {
		if _, ok := LookupLanguage(l); !ok {
			return types.NewValidationError("translation_languages",
				fmt.Sprintf("unsupported language %q", l))
		}
	}
	return nil
}

// ValidateFeedback checks that every score is within 1..5.
func ValidateFeedback(fb Feedback) error {
	if fb.WorkflowID == "" {
		return types.NewValidationError("workflow_id", "workflow_id is required")
	}
	scores := []struct {
		field string
		v     int
	}{
		{"rating", fb.Rating},
		{"usefulness_score", fb.UsefulnessScore},
		{"accuracy_score", fb.AccuracyScore},
		{"completeness_score", fb.CompletenessScore},
	}
	for _, s := range scores {
		if s.v < 1 || s.v > 5 {
			return types.NewValidationError(s.field, s.field+" must be between 1 and 5")
		}
	}
	return nil
}
