package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external tool discbatch relies on. ConfigKey names
// the TOML key that selects the binary; it is empty for tools discbatch
// cannot redirect.
type Requirement struct {
	Name        string
	Command     string
	Description string
	ConfigKey   string
	// Impact describes what degrades when an optional tool is missing.
	Impact   string
	Optional bool
}

// Status reports the availability of a dependency. Path is the resolved
// executable when Available.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// Hint tells the operator how to make an unavailable tool usable.
func (s Status) Hint() string {
	if s.Available {
		return ""
	}
	if s.ConfigKey == "" {
		return fmt.Sprintf("install %s on PATH", s.displayCommand())
	}
	return fmt.Sprintf("install %s on PATH or set %s in the config file", s.displayCommand(), s.ConfigKey)
}

func (s Status) displayCommand() string {
	if s.Command != "" {
		return s.Command
	}
	return strings.ToLower(s.Name)
}

// CheckBinaries resolves each requirement's command against PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, checkBinary(req))
	}
	return results
}

func checkBinary(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		if req.ConfigKey != "" {
			status.Detail = req.ConfigKey + " is empty"
		}
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}
