package hostcert

// State describes where a hostname sits in the request lifecycle. Only
// Pending is ever observable in the cache: a finalized or dropped entry
// leaves no artifacts behind, so the terminal states exist for reporting
// and journal records.
type State string

const (
	StatePending State = "pending"
	StateFetched State = "fetched"
	StateDropped State = "dropped"
)

// Mode is a run-mode token as given on the command line. Matching is
// case-sensitive.
type Mode string

const (
	ModeRequest Mode = "REQUEST"
	ModeGet     Mode = "GET"
	ModeDrop    Mode = "DROP"
	ModeGetAll  Mode = "GETALL"
	ModeList    Mode = "LIST"
	ModePurge   Mode = "PURGE"
)

// KnownMode reports whether token is one of the supported run modes.
func KnownMode(token string) bool {
	switch Mode(token) {
	case ModeRequest, ModeGet, ModeDrop, ModeGetAll, ModeList, ModePurge:
		return true
	}
	return false
}

// HostRequest represents one hostname under management.
type HostRequest struct {
	Hostname        string   // Canonical name, domain suffix applied
	Aliases         []string // Global + per-line aliases, order kept, duplicates kept
	State           State
	KeyPath         string // PEM encoded private key artifact
	RequestPath     string // PEM encoded signing request artifact; its presence IS the Pending state
	CertificatePath string // Set only once retrieval succeeded
}
