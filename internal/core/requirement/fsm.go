package requirement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

type Control int

const (
	ControlNone Control = iota
	ControlReset
	ControlCancel
	ControlDone
)

var (
	resetWords  = []string{"重來", "重新", "reset", "restart"}
	cancelWords = []string{"取消", "停止", "cancel", "stop"}
	doneWords   = map[string]struct{}{"done": {}, "/done": {}, "結束": {}, "直接推薦": {}}
)

const (
	replyIntro    = "我用 3 個問題幫你快速選型。\n\n"
	replyReset    = "好的，我們重來一次。\n\n"
	replyCancel   = "已取消選型流程。你可以直接問我產品規格/比較或公司資訊。"
	replyFinished = "收到。我整理需求後，直接給你 2~3 個候選型號、差異與建議。"
)

// DetectControl classifies interview commands. Done needs an exact reply;
// reset and cancel match as substrings.
func DetectControl(text string) Control {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return ControlNone
	}
	if _, ok := doneWords[t]; ok {
		return ControlDone
	}
	for _, w := range resetWords {
		if strings.Contains(t, w) {
			return ControlReset
		}
	}
	for _, w := range cancelWords {
		if strings.Contains(t, w) {
			return ControlCancel
		}
	}
	return ControlNone
}

// Machine advances a ConversationState one user turn at a time.
type Machine struct {
	questions []Question
}

func NewMachine(questions []Question) *Machine {
	if len(questions) == 0 {
		questions = DefaultQuestions()
	}
	return &Machine{questions: questions}
}

func (m *Machine) Questions() []Question {
	return m.questions
}

// Start returns a fresh active state that has not asked anything yet.
func (m *Machine) Start() domain.ConversationState {
	return domain.ConversationState{Active: true}
}

var errInvalidState = errors.New("invalid conversation state")

// Validate rejects states no transition can produce.
func (m *Machine) Validate(s domain.ConversationState) error {
	switch {
	case s.Step < 0 || s.Step > len(m.questions):
		return fmt.Errorf("%w: step %d out of range", errInvalidState, s.Step)
	case s.Active && s.Finished:
		return fmt.Errorf("%w: active and finished", errInvalidState)
	case s.Active && s.Step == len(m.questions):
		return fmt.Errorf("%w: active past last question", errInvalidState)
	}
	return nil
}

// Advance applies one user reply and returns the next state and reply text.
// An invalid incoming state restarts the interview.
func (m *Machine) Advance(s domain.ConversationState, input string) (domain.ConversationState, string) {
	if m.Validate(s) != nil || (!s.Active && !s.Finished) {
		s = m.Start()
	}

	switch DetectControl(input) {
	case ControlReset:
		s = m.Start()
		s.Asked = true
		return s, replyReset + m.prompt(0)
	case ControlCancel:
		s.Active = false
		s.Finished = false
		s.Asked = false
		return s, replyCancel
	case ControlDone:
		return m.finish(s), replyFinished
	}

	if s.Step == 0 && !s.Asked {
		s.Asked = true
		return s, replyIntro + m.prompt(0)
	}

	q := m.questions[s.Step]
	if err := s.Answers.Set(q.ID, q.Kind.normalize(input)); err != nil {
		s = m.Start()
		s.Asked = true
		return s, replyReset + m.prompt(0)
	}
	s.Step++
	if s.Step >= len(m.questions) {
		return m.finish(s), replyFinished
	}
	s.Asked = true
	return s, m.prompt(s.Step)
}

func (m *Machine) finish(s domain.ConversationState) domain.ConversationState {
	s.Active = false
	s.Finished = true
	s.Asked = false
	return s
}

func (m *Machine) prompt(step int) string {
	return fmt.Sprintf("Q%d️⃣ %s", step+1, m.questions[step].Prompt)
}
