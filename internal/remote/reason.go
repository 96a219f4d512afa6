package remote

import "strings"

// FailReason categorizes why a connection attempt failed.
type FailReason int

const (
	FailUnknown FailReason = iota
	FailTimeout
	FailRefused
	FailUnreachable
	FailAuth
	FailHostKey
	FailInspectorMissing
)

// String returns a human-readable description of the failure reason.
func (r FailReason) String() string {
	switch r {
	case FailTimeout:
		return "connection timed out"
	case FailRefused:
		return "connection refused"
	case FailUnreachable:
		return "host unreachable"
	case FailAuth:
		return "authentication failed"
	case FailHostKey:
		return "host key verification failed"
	case FailInspectorMissing:
		return "inspector not installed"
	default:
		return "unknown error"
	}
}

// categorize maps a dial error onto a FailReason by its message.
func categorize(err error) FailReason {
	if err == nil {
		return FailUnknown
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return FailTimeout
	case strings.Contains(msg, "connection refused"):
		return FailRefused
	case strings.Contains(msg, "no route to host"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "host is down"),
		strings.Contains(msg, "no such host"):
		return FailUnreachable
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "authentication failed"):
		return FailAuth
	case strings.Contains(msg, "host key"):
		return FailHostKey
	}
	return FailUnknown
}
