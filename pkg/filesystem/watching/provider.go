package watching

// Provider supplies the current set of targets that are legitimate to watch
// and to trigger on. Refresh is invoked once at startup and once per batch of
// notifications, so it should be idempotent, free of side effects, and
// reasonably cheap. Errors returned by Refresh are fatal to an Engine.
type Provider interface {
	Refresh() (Set, error)
}

// ProviderFunc adapts an ordinary function to the Provider interface.
type ProviderFunc func() (Set, error)

// Refresh implements Provider.Refresh.
func (f ProviderFunc) Refresh() (Set, error) {
	return f()
}
