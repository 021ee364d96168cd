package kucoin

import "errors"

var (
	ErrDepthUpdateOutOfSequence = errors.New("depth update is out of sequence")
	ErrDepthUpdateOutdated      = errors.New("depth update is outdated")
)

type DepthUpdateValidator struct{}

// IsValidUpd accepts an update when sequenceStart(new) <= sequenceEnd(old)+1
// and sequenceEnd(new) > sequenceEnd(old).
func (v *DepthUpdateValidator) IsValidUpd(update *DepthUpdateModel, lastSequence int64) error {
	if update.SequenceEnd <= lastSequence {
		return ErrDepthUpdateOutdated
	}

	if update.SequenceStart <= lastSequence+1 {
		return nil
	}

	return ErrDepthUpdateOutOfSequence
}
