package domain

import "fmt"

// QuestionID identifies one step of the requirement interview.
type QuestionID string

const (
	QuestionTarget           QuestionID = "target"
	QuestionObjectBand       QuestionID = "object_band"
	QuestionSceneConstraints QuestionID = "scene_constraints"
)

// RequirementAnswers holds normalized answers. An empty field is either
// unanswered or answered with an "unknown" phrase.
type RequirementAnswers struct {
	Target           string `json:"target,omitempty"`
	ObjectBand       string `json:"object_band,omitempty"`
	SceneConstraints string `json:"scene_constraints,omitempty"`
}

func (a *RequirementAnswers) Set(id QuestionID, value string) error {
	switch id {
	case QuestionTarget:
		a.Target = value
	case QuestionObjectBand:
		a.ObjectBand = value
	case QuestionSceneConstraints:
		a.SceneConstraints = value
	default:
		return fmt.Errorf("unknown question %q", id)
	}
	return nil
}

func (a RequirementAnswers) Get(id QuestionID) string {
	switch id {
	case QuestionTarget:
		return a.Target
	case QuestionObjectBand:
		return a.ObjectBand
	case QuestionSceneConstraints:
		return a.SceneConstraints
	default:
		return ""
	}
}

// Values returns the answers in interview order.
func (a RequirementAnswers) Values() []string {
	return []string{a.Target, a.ObjectBand, a.SceneConstraints}
}

// ConversationState is the persisted requirement-interview state of a session.
type ConversationState struct {
	Active   bool               `json:"active"`
	Step     int                `json:"step"`
	Asked    bool               `json:"asked"`
	Finished bool               `json:"finished"`
	Answers  RequirementAnswers `json:"answers"`
}
