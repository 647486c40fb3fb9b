package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	toggleTrueCanonicalValue               = "true"
	toggleFalseCanonicalValue              = "false"
	toggleTypeNameConstant                 = "toggle"
	toggleParseErrorTemplate               = "invalid toggle value %q"
	toggleArgumentTruePlaceholderConstant  = "<YES|no>"
	toggleArgumentFalsePlaceholderConstant = "<yes|NO>"
	longFlagPrefixConstant                 = "--"
	flagValueSeparatorConstant             = "="
)

var (
	trueLiteralSet = map[string]struct{}{
		toggleTrueCanonicalValue: {}, "yes": {}, "on": {}, "1": {}, "t": {}, "y": {},
	}
	falseLiteralSet = map[string]struct{}{
		toggleFalseCanonicalValue: {}, "no": {}, "off": {}, "0": {}, "f": {}, "n": {},
	}
)

// AddToggleFlag registers a boolean flag that accepts yes/no style values as well as the bare form.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	flagSet.Var(newToggleValue(defaultValue, target), name, usage)
	registeredFlag := flagSet.Lookup(name)
	registeredFlag.NoOptDefVal = toggleTrueCanonicalValue
	registeredFlag.Usage = formatToggleUsage(usage, defaultValue)
}

// NormalizeToggleArguments rewrites "--toggle value" into "--toggle=value" for toggle flags
// registered on flagSet so that pflag does not treat the value as a positional argument.
func NormalizeToggleArguments(flagSet *pflag.FlagSet, arguments []string) []string {
	normalized := make([]string, 0, len(arguments))
	for argumentIndex := 0; argumentIndex < len(arguments); argumentIndex++ {
		currentArgument := arguments[argumentIndex]
		if currentArgument == longFlagPrefixConstant {
			normalized = append(normalized, arguments[argumentIndex:]...)
			break
		}

		if isBareToggle(flagSet, currentArgument) && argumentIndex+1 < len(arguments) {
			nextArgument := arguments[argumentIndex+1]
			if _, parseError := parseToggleValue(nextArgument); parseError == nil && !strings.HasPrefix(nextArgument, "-") {
				normalized = append(normalized, currentArgument+flagValueSeparatorConstant+nextArgument)
				argumentIndex++
				continue
			}
		}

		normalized = append(normalized, currentArgument)
	}
	return normalized
}

func isBareToggle(flagSet *pflag.FlagSet, argument string) bool {
	if flagSet == nil || !strings.HasPrefix(argument, longFlagPrefixConstant) || strings.Contains(argument, flagValueSeparatorConstant) {
		return false
	}
	candidateFlag := flagSet.Lookup(strings.TrimPrefix(argument, longFlagPrefixConstant))
	if candidateFlag == nil {
		return false
	}
	_, isToggle := candidateFlag.Value.(*toggleValue)
	return isToggle
}

func formatToggleUsage(description string, defaultValue bool) string {
	placeholder := toggleArgumentFalsePlaceholderConstant
	if defaultValue {
		placeholder = toggleArgumentTruePlaceholderConstant
	}
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return fmt.Sprintf("`%s`", placeholder)
	}
	return fmt.Sprintf("`%s` %s", placeholder, trimmedDescription)
}

type toggleValue struct {
	currentValue bool
	target       *bool
}

func newToggleValue(defaultValue bool, target *bool) *toggleValue {
	if target != nil {
		*target = defaultValue
	}
	return &toggleValue{currentValue: defaultValue, target: target}
}

func (value *toggleValue) Set(rawValue string) error {
	parsedValue, parseError := parseToggleValue(rawValue)
	if parseError != nil {
		return parseError
	}
	value.currentValue = parsedValue
	if value.target != nil {
		*value.target = parsedValue
	}
	return nil
}

func (value *toggleValue) String() string {
	if value != nil && value.currentValue {
		return toggleTrueCanonicalValue
	}
	return toggleFalseCanonicalValue
}

func (value *toggleValue) Type() string {
	return toggleTypeNameConstant
}

func parseToggleValue(rawValue string) (bool, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	if len(normalizedValue) == 0 {
		return true, nil
	}
	if _, isTrue := trueLiteralSet[normalizedValue]; isTrue {
		return true, nil
	}
	if _, isFalse := falseLiteralSet[normalizedValue]; isFalse {
		return false, nil
	}
	return false, fmt.Errorf(toggleParseErrorTemplate, rawValue)
}
