package agent

import (
	"fmt"
	"regexp"
	"strings"
)

const finalAnswerMarker = "Final Answer:"

var (
	actionPattern      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionNamePattern  = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)`)
	actionInputPattern = regexp.MustCompile(`(?s)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
)

// ParsingError reports a model completion that is neither a tool call nor a
// final answer.
type ParsingError struct {
	// Output is the raw completion.
	Output string
	Reason string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("could not parse LLM output: %s: %q", e.Reason, e.Output)
}

// decision is the parsed form of one completion.
type decision struct {
	final  bool
	answer string
	tool   string
	input  string
}

func parseOutput(text string) (decision, error) {
	includesAnswer := strings.Contains(text, finalAnswerMarker)

	if m := actionPattern.FindStringSubmatch(text); m != nil {
		if includesAnswer {
			return decision{}, &ParsingError{Output: text, Reason: "parsing output produced both a final answer and a parse-able action"}
		}
		input := strings.Trim(strings.TrimSpace(m[2]), `"`)
		return decision{
			tool:  strings.TrimSpace(m[1]),
			input: input,
		}, nil
	}

	if includesAnswer {
		i := strings.LastIndex(text, finalAnswerMarker)
		return decision{
			final:  true,
			answer: strings.TrimSpace(text[i+len(finalAnswerMarker):]),
		}, nil
	}

	if !actionNamePattern.MatchString(text) {
		return decision{}, &ParsingError{Output: text, Reason: "missing 'Action:' after 'Thought:'"}
	}
	if !actionInputPattern.MatchString(text) {
		return decision{}, &ParsingError{Output: text, Reason: "missing 'Action Input:' after 'Action:'"}
	}
	return decision{}, &ParsingError{Output: text, Reason: "unrecognized format"}
}
