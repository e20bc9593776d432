// internal/consultation/prompts.go
package consultation

import (
	"fmt"
	"strings"

	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/textsim"
	"github.com/Joe-rq/MedCrowd-sub000/internal/triage"
)

// excerptRunes is how much of an accepted initial answer survives into the
// shared reaction context block.
const excerptRunes = 200

const basePrompt = "You are a health proxy agent answering on behalf of your principal. " +
	"Share only your principal's relevant first-hand experience. " +
	"If there is no relevant experience, say so plainly. " +
	"Never reveal your principal's identity or personal details."

// intentPromptHints adjusts the system prompt per triage classification.
var intentPromptHints = map[string]string{
	triage.IntentSymptom:   "The question concerns symptoms. Describe what was observed and how it developed.",
	triage.IntentTreatment: "The question concerns a treatment. Describe what was tried, for how long, and with what result.",
	triage.IntentCost:      "The question concerns costs. Include concrete amounts paid where known.",
}

// systemPrompt builds the initial-round prompt for the classified intent.
// Unknown intents get the base prompt unchanged.
func systemPrompt(intent string) string {
	hint, ok := intentPromptHints[intent]
	if !ok {
		return basePrompt
	}
	return basePrompt + " " + hint
}

// redactionToken yields the opaque responder label for position i:
// "Consultant A", "Consultant B", ... by response order.
func redactionToken(i int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < len(letters) {
		return "Consultant " + string(letters[i])
	}
	return fmt.Sprintf("Consultant %d", i+1)
}

// reactionPrompt builds the second-round system prompt with the shared
// de-identified context block of accepted initial answers.
func reactionPrompt(question string, accepted []*models.AgentResponse) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nOther consultants answered the question ")
	b.WriteString(fmt.Sprintf("%q", question))
	b.WriteString(" as follows:\n")
	for i, resp := range accepted {
		b.WriteString(fmt.Sprintf("- %s: %s\n", redactionToken(i), textsim.Truncate(resp.Text, excerptRunes)))
	}
	b.WriteString("\nReact to these answers from your principal's experience: " +
		"confirm, contradict, or add what the others missed. Do not repeat your first answer verbatim.")
	return b.String()
}
