package engine

import (
	"github.com/helpdesk-ai/support-engine/internal/model"
)

// clarificationMessage asks the user to name the specific system or entity.
// A static template, not model-generated: the question never depends on the
// utterance, only on the fact that no entity was resolved.
const clarificationMessage = "Para poder ayudarte mejor, ¿podrías indicarme a qué sistema o aplicación se refiere tu consulta?"

// runClarify composes the clarifying question and increments the attempt
// counter. Idempotent for a given input attempts count.
func (e *Engine) runClarify(p *pass) (node, error) {
	state := p.nextState(false)
	state.ClarificationAttempts = p.prior.ClarificationAttempts + 1

	p.result = &Result{
		Reply:    clarificationMessage,
		Decision: model.DecisionClarify,
		State:    state,
	}
	return nodeDone, nil
}
