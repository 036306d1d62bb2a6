package flags

import (
	"fmt"
	"strings"
)

const (
	choicePlaceholderOpenConstant   = "<"
	choicePlaceholderCloseConstant  = ">"
	choiceSeparatorConstant         = "|"
	choiceOnlyUsageTemplateConstant = "`%s`"
	choiceUsageTemplateConstant     = "`%s` %s"
)

// FormatChoiceUsage renders a flag usage string whose placeholder lists every
// accepted choice with the default choice capitalized.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))

	renderedChoices := make([]string, 0, len(choices))
	seenChoices := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		trimmedChoice := strings.TrimSpace(choice)
		if len(trimmedChoice) == 0 {
			continue
		}

		normalizedChoice := strings.ToLower(trimmedChoice)
		if _, alreadySeen := seenChoices[normalizedChoice]; alreadySeen {
			continue
		}
		seenChoices[normalizedChoice] = struct{}{}

		if normalizedChoice == normalizedDefault {
			trimmedChoice = strings.ToUpper(trimmedChoice)
		}
		renderedChoices = append(renderedChoices, trimmedChoice)
	}

	placeholder := choicePlaceholderOpenConstant + strings.Join(renderedChoices, choiceSeparatorConstant) + choicePlaceholderCloseConstant
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceOnlyUsageTemplateConstant, placeholder)
	}
	return fmt.Sprintf(choiceUsageTemplateConstant, placeholder, description)
}
