// Package progress derives the workflow stage of a workbench session.
package progress

// Stage is an ordered workflow step.
type Stage int

const (
	StageStart Stage = iota
	StageCaseInfo
	StageAudioLoaded
	StageAnnotated
	StageExported
)

var stageNames = [...]string{"start", "case_info", "audio_loaded", "annotated", "exported"}

func (s Stage) String() string {
	if s < StageStart || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Inputs are the facts the stage is computed from.
type Inputs struct {
	CaseInfoEntered bool
	QuestionLoaded  bool
	ControlLoaded   bool
	Annotated       bool
	Exported        bool
}

// Compute returns the stage the inputs reach on their own.
func Compute(in Inputs) Stage {
	switch {
	case in.Exported:
		return StageExported
	case in.Annotated:
		return StageAnnotated
	case in.QuestionLoaded && in.ControlLoaded:
		return StageAudioLoaded
	case in.CaseInfoEntered:
		return StageCaseInfo
	}
	return StageStart
}

// Derive never moves backwards: the result is the later of previous and the
// stage computed from in.
func Derive(previous Stage, in Inputs) Stage {
	if s := Compute(in); s > previous {
		return s
	}
	return previous
}
