package update

// Host is the collaborator that serves the active bundle.
type Host interface {
	// SetActiveContentRoot points the host at a bundle directory. An empty
	// path selects the embedded base bundle.
	SetActiveContentRoot(path string) error
	// ReloadContent makes the host load from the current content root.
	ReloadContent() error
}
