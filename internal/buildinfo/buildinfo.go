// Package buildinfo holds metadata injected at build time
package buildinfo

import "fmt"

// Info describes the running binary
type Info struct {
	Version   string
	Commit    string
	BuildDate string
}

// GetVersion returns the version, or "unknown" when none was injected
func (i Info) GetVersion() string {
	if i.Version == "" {
		return "unknown"
	}
	return i.Version
}

// String is the text printed by --version
func (i Info) String() string {
	s := i.GetVersion()
	if i.Commit != "" {
		s += " (" + i.Commit + ")"
	}
	if i.BuildDate != "" {
		s = fmt.Sprintf("%s built %s", s, i.BuildDate)
	}
	return s
}
