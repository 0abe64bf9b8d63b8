package syncstore

// State is the store's remote synchronization state.
//
// Transitions:
//
//	Uninitialized -> LocalOnly (Init called)
//	LocalOnly -> RemoteActive (listener attached)
//	RemoteActive -> LocalOnly (sync disabled or offline)
type State int

const (
	// Uninitialized: constructed, Init not yet called.
	Uninitialized State = iota

	// LocalOnly: mutations are applied and persisted locally only.
	LocalOnly

	// RemoteActive: a remote listener is attached and mutations are
	// forwarded.
	RemoteActive
)

// String returns the state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case LocalOnly:
		return "local-only"
	case RemoteActive:
		return "remote-active"
	}
	return "unknown"
}
