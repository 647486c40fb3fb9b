package flags

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	testToggleFlagNameConstant = "keep-backup"
	testChoiceFlagNameConstant = "verification"
)

func TestAddToggleFlagParsesValues(testInstance *testing.T) {
	testCases := []struct {
		name            string
		defaultValue    bool
		arguments       []string
		expectedValue   bool
		expectedChanged bool
		expectedArgs    []string
	}{
		{name: "default_true", defaultValue: true, arguments: []string{}, expectedValue: true},
		{name: "implicit_true", arguments: []string{"--keep-backup"}, expectedValue: true, expectedChanged: true},
		{name: "explicit_no", defaultValue: true, arguments: []string{"--keep-backup", "no"}, expectedValue: false, expectedChanged: true},
		{name: "explicit_yes_uppercase", arguments: []string{"--keep-backup", "YES"}, expectedValue: true, expectedChanged: true},
		{name: "equals_form", defaultValue: true, arguments: []string{"--keep-backup=off"}, expectedValue: false, expectedChanged: true},
		{name: "positional_preserved", arguments: []string{"--keep-backup", "/srv/data"}, expectedValue: true, expectedChanged: true, expectedArgs: []string{"/srv/data"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command := &cobra.Command{}

			var toggleValue bool
			AddToggleFlag(command.Flags(), &toggleValue, testToggleFlagNameConstant, testCase.defaultValue, "Keep a backup")

			require.NoError(testInstance, command.ParseFlags(NormalizeToggleArguments(command.Flags(), testCase.arguments)))
			require.Equal(testInstance, testCase.expectedValue, toggleValue)
			require.Equal(testInstance, testCase.expectedChanged, command.Flags().Lookup(testToggleFlagNameConstant).Changed)
			if testCase.expectedArgs != nil {
				require.Equal(testInstance, testCase.expectedArgs, command.Flags().Args())
			}
		})
	}
}

func TestAddToggleFlagRejectsInvalidValues(testInstance *testing.T) {
	command := &cobra.Command{}

	var toggleValue bool
	AddToggleFlag(command.Flags(), &toggleValue, testToggleFlagNameConstant, false, "Keep a backup")

	require.Error(testInstance, command.ParseFlags([]string{"--keep-backup=maybe"}))
	require.False(testInstance, toggleValue)
}

func TestAddChoiceFlag(testInstance *testing.T) {
	testCases := []struct {
		name          string
		arguments     []string
		expectedValue string
		expectError   bool
	}{
		{name: "default", arguments: []string{}, expectedValue: "sample"},
		{name: "case_insensitive", arguments: []string{"--verification=FULL"}, expectedValue: "full"},
		{name: "rejects_unknown", arguments: []string{"--verification=partial"}, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command := &cobra.Command{}

			var selectedValue string
			AddChoiceFlag(command.Flags(), &selectedValue, testChoiceFlagNameConstant, "sample", []string{"sample", "full"}, "Verification mode")

			parseError := command.ParseFlags(testCase.arguments)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedValue, selectedValue)
		})
	}
}

func TestFormatChoiceUsageHighlightsDefault(testInstance *testing.T) {
	require.Equal(testInstance, "`<SAMPLE|full>` Verification mode", FormatChoiceUsage("sample", []string{"sample", "full"}, "Verification mode"))
}
