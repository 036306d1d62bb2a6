package pathutils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testHomeDirectoryConstant = "/home/operator"
)

func TestHomeExpanderExpand(t *testing.T) {
	testCases := []struct {
		name          string
		candidatePath string
		expectedPath  string
	}{
		{
			name:          "BareTilde",
			candidatePath: "~",
			expectedPath:  testHomeDirectoryConstant,
		},
		{
			name:          "TildeWithPath",
			candidatePath: "~/mirrors/staging",
			expectedPath:  testHomeDirectoryConstant + "/mirrors/staging",
		},
		{
			name:          "AbsolutePathUnchanged",
			candidatePath: "/tmp/au-revoir-gitlab",
			expectedPath:  "/tmp/au-revoir-gitlab",
		},
		{
			name:          "TildeUserFormUnchanged",
			candidatePath: "~operator/staging",
			expectedPath:  "~operator/staging",
		},
		{
			name:          "EmptyPathUnchanged",
			candidatePath: "",
			expectedPath:  "",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			expander := NewHomeExpanderWithProvider(func() (string, error) {
				return testHomeDirectoryConstant, nil
			})
			require.Equal(t, testCase.expectedPath, expander.Expand(testCase.candidatePath))
		})
	}
}

func TestHomeExpanderKeepsPathWhenHomeLookupFails(t *testing.T) {
	expander := NewHomeExpanderWithProvider(func() (string, error) {
		return "", errors.New("no home directory")
	})

	require.Equal(t, "~/staging", expander.Expand("~/staging"))
}
