package config

// Backend names the graph store implementation a session opens
type Backend string

const (
	BackendSQLite Backend = "sqlite" // embedded snapshot file
	BackendRemote Backend = "remote" // store endpoint over HTTP
	BackendMemory Backend = "memory" // empty in-process store, for tests
)

// ParseBackend converts a string to Backend, defaulting to BackendSQLite
func ParseBackend(s string) Backend {
	switch s {
	case "remote", "http":
		return BackendRemote
	case "memory":
		return BackendMemory
	default:
		return BackendSQLite
	}
}

// Valid reports whether b is a known backend
func (b Backend) Valid() bool {
	switch b {
	case BackendSQLite, BackendRemote, BackendMemory:
		return true
	default:
		return false
	}
}
