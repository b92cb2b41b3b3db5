package replicated

// State is the connectivity state of a Client, derived by discovery.
type State int

const (
	// StateDisconnected is the state before the first discovery and after Close.
	StateDisconnected State = iota
	// StateReplicating: distinct master and replica are both reachable and
	// the replica was told to follow the master.
	StateReplicating
	// StateStandalone: one connection serves reads and writes, either because
	// master and replica are the same server or because no replica answered.
	StateStandalone
	// StatePromoted: the master is unreachable and a replica was detached
	// from replication to serve reads and writes.
	StatePromoted
	// StateUnavailable: no endpoint answered.
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateReplicating:
		return "replicating"
	case StateStandalone:
		return "standalone"
	case StatePromoted:
		return "promoted"
	case StateUnavailable:
		return "unavailable"
	default:
		return "disconnected"
	}
}

// Connectivity is a snapshot of which roles are currently served.
type Connectivity struct {
	State            State
	MasterConnected  bool
	ReplicaConnected bool
	Standalone       bool
	// Master and Replica are the addresses of the connections in use for
	// writes and reads (equal when a single connection serves both).
	Master  string
	Replica string
}
