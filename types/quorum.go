package types

// VerifyResult is the outcome of admitting or verifying a block graph.
type VerifyResult uint8

const (
	UnableToVerify = VerifyResult(0)
	Succeed        = VerifyResult(1)
	AlreadyExists  = VerifyResult(2)
	Invalid        = VerifyResult(3)
)

func (r VerifyResult) String() string {
	switch r {
	case UnableToVerify:
		return "UnableToVerify"
	case Succeed:
		return "Succeed"
	case AlreadyExists:
		return "AlreadyExists"
	case Invalid:
		return "Invalid"
	default:
		return "UnknownResult"
	}
}

// MaxFaulty returns f, the number of byzantine nodes n participants tolerate
// (n >= 3f+1).
func MaxFaulty(n int) int {
	if n <= 0 {
		return 0
	}
	return (n - 1) / 3
}

// QuorumSize returns 2f+1 for n participants.
func QuorumSize(n int) int {
	return 2*MaxFaulty(n) + 1
}

// HasQuorum reports whether count distinct proposers reach the quorum of a
// membership of n nodes.
func HasQuorum(count, n int) bool {
	return count >= QuorumSize(n)
}
