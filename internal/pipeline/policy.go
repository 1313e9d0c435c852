package pipeline

import (
	"maps"
	"slices"

	siteerrors "git.home.luguber.info/inful/pagesmith/internal/errors"
)

// FailureKind classifies a problem met while building.
type FailureKind string

const (
	FailDataFile        FailureKind = "data_file"
	FailWidgetFile      FailureKind = "widget_file"
	FailMissingDir      FailureKind = "missing_dir"
	FailMissingURL      FailureKind = "missing_url"
	FailUnknownWidget   FailureKind = "unknown_widget"
	FailRender          FailureKind = "render"
	FailOutputPath      FailureKind = "output_path"
	FailWrite           FailureKind = "write"
	FailDuplicateURL    FailureKind = "duplicate_url"
	FailMissingTemplate FailureKind = "missing_template"
	FailWidgetCompile   FailureKind = "widget_compile"
)

// Action is what the pipeline does about a failure. Loader failures
// (data_file, widget_file, missing_dir) honour degrade and treat every other
// action as abort. Page failures honour skip_page and abort and record every
// other action as a failed page. unknown_widget also honours skip_section.
// widget_compile drops the widget unless the action is abort.
type Action string

const (
	// ActionDegrade substitutes an empty value and carries on.
	ActionDegrade Action = "degrade"
	// ActionSkipPage drops the page without output.
	ActionSkipPage Action = "skip_page"
	// ActionSkipSection drops one content section.
	ActionSkipSection Action = "skip_section"
	// ActionContinue records the page as failed and moves to the next page.
	ActionContinue Action = "continue"
	// ActionAbort stops the build. Failures found while planning abort before
	// any page is written.
	ActionAbort Action = "abort"
)

var actions = []Action{ActionDegrade, ActionSkipPage, ActionSkipSection, ActionContinue, ActionAbort}

// Policy is the default failure policy table. The failure_policy setting
// overrides single rows.
var Policy = map[FailureKind]Action{
	FailDataFile:        ActionDegrade,
	FailWidgetFile:      ActionDegrade,
	FailMissingDir:      ActionDegrade,
	FailMissingURL:      ActionSkipPage,
	FailUnknownWidget:   ActionSkipSection,
	FailRender:          ActionContinue,
	FailOutputPath:      ActionContinue,
	FailWrite:           ActionContinue,
	FailDuplicateURL:    ActionAbort,
	FailMissingTemplate: ActionAbort,
	FailWidgetCompile:   ActionAbort,
}

// ActionFor returns the policy action for kind. Unknown kinds abort.
func ActionFor(kind FailureKind) Action {
	if a, ok := Policy[kind]; ok {
		return a
	}
	return ActionAbort
}

// ParsePolicy validates failure_policy overrides, keyed by failure kind and
// valued by action name.
func ParsePolicy(overrides map[string]string) (map[FailureKind]Action, error) {
	out := make(map[FailureKind]Action, len(overrides))
	for _, k := range slices.Sorted(maps.Keys(overrides)) {
		kind := FailureKind(k)
		if _, ok := Policy[kind]; !ok {
			return nil, siteerrors.ValidationFailed("failure_policy", "unknown failure kind "+k)
		}
		action := Action(overrides[k])
		if !slices.Contains(actions, action) {
			return nil, siteerrors.ValidationFailed("failure_policy", "unknown action "+overrides[k]+" for "+k)
		}
		out[kind] = action
	}
	return out, nil
}
