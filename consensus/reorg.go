package consensus

// VerifyReorg implements §4.7: it rewinds a working copy of cs to the
// fork point implied by newBranch, replays newBranch under the normal
// append rules, and commits only if the resulting cumulative difficulty
// strictly exceeds cs's. cs itself is never mutated; on any failure the
// caller's chain state is exactly as it was before the call.
func (cs *ChainState) VerifyReorg(newBranch []*Block, verifier SignatureVerifier) (*ChainState, error) {
	if len(newBranch) == 0 {
		return nil, validationErr(ReasonBadHeight)
	}

	w := cs.clone()

	splitHeight := newBranch[0].Height
	for {
		tip := w.tip()
		if tip == nil || tip.Height < splitHeight {
			break
		}
		w.UndoLastBlock()
	}

	for _, b := range newBranch {
		if err := w.VerifyAndApplyBlock(b, verifier); err != nil {
			return nil, err
		}
	}

	if w.TotalDifficulty.Cmp(cs.TotalDifficulty) <= 0 {
		return nil, validationErr(ReasonInsufficientTotalDifficulty)
	}

	return w, nil
}
