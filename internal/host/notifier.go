package host

import (
	"fmt"
	"io"
	"time"
)

// TerminalNotifier prints notices to the host terminal. Duration is
// accepted for interface compatibility; a terminal line does not
// expire.
type TerminalNotifier struct {
	out io.Writer
}

func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out}
}

func (n *TerminalNotifier) Notify(message string, _ time.Duration) {
	fmt.Fprintln(n.out, message)
}
