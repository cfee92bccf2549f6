package share

import (
	"fmt"
	"os"
	"strings"
)

// MissingEnvError lists the environment variables a provider needs but did not find.
type MissingEnvError struct {
	Provider  string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// ValidationError is returned when a post cannot be published as requested.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Provider, e.Reason)
}

// ReadEnv returns the trimmed values of the required and optional variables.
// Every empty required variable is reported in a single MissingEnvError.
func ReadEnv(provider string, required []string, optional ...string) (map[string]string, error) {
	values := make(map[string]string, len(required)+len(optional))
	var missing []string
	for _, name := range required {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			missing = append(missing, name)
		}
		values[name] = v
	}
	for _, name := range optional {
		values[name] = strings.TrimSpace(os.Getenv(name))
	}
	if len(missing) > 0 {
		return nil, MissingEnvError{Provider: provider, Variables: missing}
	}
	return values, nil
}
