// Package host supplies the process-level collaborators the core
// depends on through interfaces: the external browser, user notices,
// and the vault filesystem the exporter writes into.
package host

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Browser opens URLs with the operating system's default handler
type Browser struct {
	logger *slog.Logger
}

func NewBrowser(logger *slog.Logger) *Browser {
	return &Browser{logger: logger}
}

// Open launches the URL in the default browser. The command is started
// asynchronously; a missing handler surfaces as an error, a slow one
// does not block the caller.
func (b *Browser) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	b.logger.Info("opening browser", "os", runtime.GOOS, "url", url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("host: open browser: %w", err)
	}
	return nil
}
