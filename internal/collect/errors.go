package collect

import "errors"

// ErrRunFaulted is returned by any link that refuses to run because a
// prior link or concurrent stage already called RunContext.Fault.
var ErrRunFaulted = errors.New("collect: run context is faulted")

// ErrFilenameCollision is raised when a writer's lazily-created output
// file already exists on disk. spec.md §4.5 treats this as fatal: writing
// into another run's output silently would corrupt both.
var ErrFilenameCollision = errors.New("collect: output filename collision")

// ErrNoDomainController is returned by domain discovery when it cannot
// resolve a domain controller for the selected domain.
var ErrNoDomainController = errors.New("collect: no domain controller resolved")
