package domain

import "time"

// Host collaborator contracts. The core never touches the host directly;
// the embedding application supplies these at construction time.

// BrowserLauncher opens a URL in the user's external browser
type BrowserLauncher interface {
	Open(url string) error
}

// Notifier shows a short user-facing notice for a duration
type Notifier interface {
	Notify(message string, duration time.Duration)
}

// VaultFS writes files inside the host's fixed vault root. Paths are
// relative, slash-separated, and must not escape the root.
type VaultFS interface {
	MkdirAll(relPath string) error
	WriteFile(relPath string, data []byte) error
}
