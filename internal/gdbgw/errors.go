package gdbgw

import "fmt"

// CommandError wraps a failed Exec/Enqueue call with the command text and
// the debugger's own error output; it is the gateway's debugger-command
// error in the error taxonomy.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gdbgw: command %q failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("gdbgw: command %q failed: %s", e.Command, e.Output)
}

func (e *CommandError) Unwrap() error { return e.Err }
