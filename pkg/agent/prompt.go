package agent

import (
	"strings"

	"github.com/nstogner/searchchat/pkg/domain"
)

const (
	promptPrefix = "Answer the following questions as best you can. You have access to the following tools:"

	formatInstructions = `Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{tool_names}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question`

	promptSuffix = "Begin!\n\nQuestion: {input}\nThought:{agent_scratchpad}"

	observationPrefix = "Observation: "
	thoughtPrefix     = "Thought: "
)

// stopSequences end a completion before the model invents an observation.
var stopSequences = []string{"\nObservation:", "\n\tObservation:"}

// buildPrompt renders the zero-shot prompt for the given tools, question and
// scratchpad of previous steps.
func buildPrompt(tools []domain.ToolDescriptor, input, scratchpad string) string {
	lines := make([]string, 0, len(tools))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		lines = append(lines, t.Name+": "+t.Description)
		names = append(names, t.Name)
	}

	var b strings.Builder
	b.WriteString(promptPrefix)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
	b.WriteString(strings.ReplaceAll(formatInstructions, "{tool_names}", strings.Join(names, ", ")))
	b.WriteString("\n\n")

	suffix := strings.Replace(promptSuffix, "{input}", input, 1)
	b.WriteString(strings.Replace(suffix, "{agent_scratchpad}", scratchpad, 1))
	return b.String()
}

// appendStep adds one completed round to the scratchpad.
func appendStep(scratchpad *strings.Builder, modelText, observation string) {
	scratchpad.WriteString(modelText)
	scratchpad.WriteString("\n")
	scratchpad.WriteString(observationPrefix)
	scratchpad.WriteString(observation)
	scratchpad.WriteString("\n")
	scratchpad.WriteString(thoughtPrefix)
}
