package consensus

// ValidationError is the sole error kind the consensus core returns.
// Reason is drawn from a closed set; callers may switch on it but must
// not assume the set is open for extension.
type ValidationError struct {
	Reason string
}

const (
	ReasonIncorrectDifficulty       = "incorrect difficulty"
	ReasonBadBlockID                = "bad block id"
	ReasonTooManyTransactions       = "too many transactions"
	ReasonBadMinerLength            = "bad miner length"
	ReasonInsufficientProofOfWork   = "insufficient proof-of-work"
	ReasonBadSenderHash             = "bad sender hash"
	ReasonBadRecipientHash          = "bad recipient hash"
	ReasonBadAmount                 = "bad amount"
	ReasonBadFee                    = "bad fee"
	ReasonBadNonce                  = "bad nonce"
	ReasonBadTxID                   = "bad txid"
	ReasonInvalidSignature          = "invalid signature"
	ReasonBadHeight                 = "bad height"
	ReasonBadPrevious               = "bad previous"
	ReasonBadTimestamp              = "bad timestamp"
	ReasonInsufficientTotalDifficulty = "insufficient total difficulty"
)

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Reason
}

func validationErr(reason string) error {
	return &ValidationError{Reason: reason}
}
