package parser

import (
	"strings"

	"blockstream/types"
)

// ContainerKind is a producer markup container opened by ":::kind"
type ContainerKind int

const (
	ContainerCallout ContainerKind = iota
	ContainerSteps
	ContainerDefinition
	ContainerAction
	ContainerAskFlow
)

// String returns the string representation of the ContainerKind
func (c ContainerKind) String() string {
	switch c {
	case ContainerCallout:
		return "callout"
	case ContainerSteps:
		return "steps"
	case ContainerDefinition:
		return "definition"
	case ContainerAction:
		return "action"
	case ContainerAskFlow:
		return "ask_flow"
	default:
		return "unknown"
	}
}

// calloutAliases maps every accepted callout opener to its variant
var calloutAliases = map[string]types.CalloutVariant{
	"info":    types.CalloutInfo,
	"note":    types.CalloutInfo,
	"warning": types.CalloutWarning,
	"caution": types.CalloutWarning,
	"danger":  types.CalloutWarning,
	"success": types.CalloutSuccess,
	"tip":     types.CalloutTip,
	"hint":    types.CalloutTip,
}

type containerOpener struct {
	kind    ContainerKind
	variant types.CalloutVariant
	args    string
}

// containerOpen recognizes ":::kind args". Unknown kinds are not containers
// and fall through to text.
func containerOpen(line string) (containerOpener, bool) {
	m := containerPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return containerOpener{}, false
	}
	name := strings.ToLower(m[1])
	args := strings.TrimSpace(m[2])

	if variant, ok := calloutAliases[name]; ok {
		return containerOpener{kind: ContainerCallout, variant: variant, args: args}, true
	}
	switch name {
	case "steps":
		return containerOpener{kind: ContainerSteps, args: args}, true
	case "definition":
		return containerOpener{kind: ContainerDefinition, args: args}, true
	case "action":
		return containerOpener{kind: ContainerAction, args: args}, true
	case "ask_flow", "askflow":
		return containerOpener{kind: ContainerAskFlow, args: args}, true
	}
	return containerOpener{}, false
}

func isContainerClose(line string) bool {
	return strings.TrimSpace(line) == ":::"
}

func buildContainer(open containerOpener, body []string) types.MessageBlock {
	switch open.kind {
	case ContainerCallout:
		return &types.CalloutBlock{
			Variant: open.variant,
			Title:   open.args,
			Content: joinTrimmed(body),
		}

	case ContainerSteps:
		steps := &types.StepsBlock{Items: []string{}}
		for _, line := range body {
			if isBlank(line) {
				continue
			}
			if _, item, ok := listItem(line); ok {
				steps.Items = append(steps.Items, item)
				continue
			}
			steps.Items = append(steps.Items, strings.TrimSpace(line))
		}
		return steps

	case ContainerDefinition:
		term := open.args
		rest := body
		if term == "" {
			// Without an inline term the first non-blank line names it
			for len(rest) > 0 && isBlank(rest[0]) {
				rest = rest[1:]
			}
			if len(rest) > 0 {
				term = strings.TrimSpace(rest[0])
				rest = rest[1:]
			}
		}
		return &types.DefinitionBlock{Term: term, Definition: joinTrimmed(rest)}

	case ContainerAction:
		return &types.ActionBlock{Data: payloadJSON(strings.Join(body, "\n"))}

	case ContainerAskFlow:
		var selected, instruction []string
		for _, line := range body {
			if isQuote(line) {
				selected = append(selected, stripQuote(line))
				continue
			}
			instruction = append(instruction, line)
		}
		return &types.AskFlowBlock{
			SelectedText: joinTrimmed(selected),
			Instruction:  joinTrimmed(instruction),
		}
	}
	return &types.TextBlock{Content: joinTrimmed(body)}
}

// joinTrimmed joins lines and drops leading and trailing blank lines
func joinTrimmed(lines []string) string {
	for len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
