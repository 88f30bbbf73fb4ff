package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// Flags that would redirect the fixed input or output of an invocation, or
// make the engine read or write files of its own choosing.
var reservedFlags = map[string]bool{
	"-i":                     true,
	"-y":                     true,
	"-n":                     true,
	"-f":                     true,
	"-map":                   true,
	"-progress":              true,
	"-nostats":               true,
	"-stats":                 true,
	"-report":                true,
	"-dump_attachment":       true,
	"-attach":                true,
	"-passlogfile":           true,
	"-vstats_file":           true,
	"-filter_script":         true,
	"-filter_complex_script": true,
}

var (
	// protocol prefixes such as pipe:1, file:x or tcp://host
	protocolValue = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)
	// negative numbers are option values, not flags
	negativeNumber = regexp.MustCompile(`^-[0-9.]`)
	// filter sources that open arbitrary files
	fileFilter = regexp.MustCompile(`(?i)movie=`)
)

// SplitExtraArgs splits a user supplied option string without a shell and
// checks every argument.
func SplitExtraArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	args, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("invalid extraArgs syntax: %w", err)
	}
	if err := ValidateExtraArgs(args); err != nil {
		return nil, err
	}
	return args, nil
}

// ValidateExtraArgs accepts only "-flag" and "-flag value" pairs. Bare
// arguments would become extra outputs, so every value must directly follow
// a flag.
func ValidateExtraArgs(args []string) error {
	expectValue := false
	for _, arg := range args {
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
		if strings.ContainsAny(arg, `/\`) {
			return fmt.Errorf("paths are not allowed in extraArgs: %s", arg)
		}

		if isFlag(arg) {
			if reservedFlags[strings.ToLower(arg)] {
				return fmt.Errorf("flag %s is managed by the server", arg)
			}
			expectValue = true
			continue
		}

		if !expectValue {
			return fmt.Errorf("argument %s must follow a flag", arg)
		}
		expectValue = false

		if protocolValue.MatchString(arg) {
			return fmt.Errorf("protocol values are not allowed in extraArgs: %s", arg)
		}
		if fileFilter.MatchString(arg) {
			return fmt.Errorf("file reading filters are not allowed in extraArgs: %s", arg)
		}
	}
	return nil
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-' && !negativeNumber.MatchString(arg)
}
