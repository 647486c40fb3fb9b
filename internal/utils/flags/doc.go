// Package flags provides pflag values shared by memdoc commands: yes/no toggles
// and closed-set choices with usage strings that highlight the default.
package flags
