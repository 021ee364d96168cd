package binance

import "errors"

var (
	// requires resyncing from a fresh snapshot once a threshold is reached
	ErrDepthUpdateOutOfSequence = errors.New("depth update is out of sequence")
	// safe to skip
	ErrDepthUpdateOutdated = errors.New("depth update is outdated")
)

type DepthUpdateValidator struct{}

// IsValidUpd checks a diff event against the book's last update id,
// following the exchange's documented sequencing rules.
func (v *DepthUpdateValidator) IsValidUpd(update *DepthUpdateData, lastUpdateID int64) error {
	// drop any event where u is <= lastUpdateId in the snapshot
	if update.FinalUpdateId <= lastUpdateID {
		return ErrDepthUpdateOutdated
	}

	// the first processed event should have U <= lastUpdateId+1 AND u >= lastUpdateId+1
	if update.FirstUpdateId <= lastUpdateID+1 && update.FinalUpdateId >= lastUpdateID+1 {
		return nil
	}

	if update.FirstUpdateId > lastUpdateID+1 {
		return ErrDepthUpdateOutOfSequence
	}

	return nil
}
