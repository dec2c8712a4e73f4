package service

import "fmt"

// StartupFault means a component could not be built from configuration.
// No cycle runs after one; the CLI reports it and exits non-zero.
type StartupFault struct {
	Component string
	Err       error
}

func (f *StartupFault) Error() string {
	return fmt.Sprintf("startup fault in %s: %v", f.Component, f.Err)
}

func (f *StartupFault) Unwrap() error { return f.Err }

func fault(component string, err error) *StartupFault {
	return &StartupFault{Component: component, Err: err}
}
