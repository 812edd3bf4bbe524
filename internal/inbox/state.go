// Package inbox reconciles rule and model signals into a single
// categorization decision and review state. ComputeState is a pure
// function; callers must never invoke it for confirmed transactions, whose
// cleared state is terminal.
package inbox

import (
	"github.com/mintfall/sift/internal/model"
	"github.com/mintfall/sift/internal/rules"
)

// Input carries the signals available for one transaction.
type Input struct {
	RuleMatch  *rules.Match
	Prediction *model.Prediction
	Threshold  float64
}

// Result is the reconciled decision.
type Result struct {
	Category          string
	CategoryType      string
	SuggestedCategory string
	Source            model.ClassificationSource
	State             model.InboxState
	Confidence        float64
}

// ComputeState merges the available signals in fixed priority order:
// a rule match always wins; otherwise the model applies its category only
// when confidence clears the threshold (boundary inclusive); low-confidence
// predictions are stored as suggestions and queued for review.
func ComputeState(in Input) Result {
	if in.RuleMatch != nil {
		return Result{
			Category:     in.RuleMatch.Category,
			CategoryType: in.RuleMatch.CategoryType,
			Source:       model.SourceRule,
			State:        model.InboxAutoClassified,
			Confidence:   1.0,
		}
	}

	if in.Prediction != nil {
		if in.Prediction.Confidence >= in.Threshold {
			return Result{
				Category:     in.Prediction.Category,
				CategoryType: in.Prediction.CategoryType,
				Source:       model.SourceModel,
				State:        model.InboxAutoClassified,
				Confidence:   in.Prediction.Confidence,
			}
		}

		// Below the bar the model's opinion is never auto-applied; it
		// survives only as a suggestion for the reviewer.
		return Result{
			Category:          rules.FallbackCategory,
			SuggestedCategory: in.Prediction.Category,
			Source:            model.SourceModel,
			State:             model.InboxNeedsReview,
			Confidence:        in.Prediction.Confidence,
		}
	}

	return Result{
		Category: rules.FallbackCategory,
		Source:   model.SourceNone,
		State:    model.InboxUnclassified,
	}
}
