package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatChoiceUsage(t *testing.T) {
	testCases := []struct {
		name           string
		defaultChoice  string
		choices        []string
		description    string
		expectedOutput string
	}{
		{
			name:           "DefaultFirstChoice",
			defaultChoice:  "https",
			choices:        []string{"https", "ssh"},
			description:    "Transport for source clones",
			expectedOutput: "`<HTTPS|ssh>` Transport for source clones",
		},
		{
			name:           "DefaultSecondChoice",
			defaultChoice:  "public",
			choices:        []string{"private", "public"},
			description:    "Visibility for created repositories",
			expectedOutput: "`<private|PUBLIC>` Visibility for created repositories",
		},
		{
			name:           "EmptyDescription",
			defaultChoice:  "ssh",
			choices:        []string{"https", "ssh"},
			description:    "",
			expectedOutput: "`<https|SSH>`",
		},
		{
			name:           "DuplicateAndPaddedChoices",
			defaultChoice:  "https",
			choices:        []string{" https ", "https", " ssh "},
			description:    "Transport for destination pushes",
			expectedOutput: "`<HTTPS|ssh>` Transport for destination pushes",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			actual := FormatChoiceUsage(testCase.defaultChoice, testCase.choices, testCase.description)
			require.Equal(t, testCase.expectedOutput, actual)
		})
	}
}
