package rtseg

import "context"

// Close destroys the segment and releases its index memory. Queries
// started before Close fail with ErrSegmentDestroyed; callers should stop
// them first. Closing twice is a no-op.
func (in *Ingester) Close() error {
	if in == nil {
		return nil
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed.Swap(true) {
		return nil
	}
	n := in.seg.NumDocs()
	err := in.seg.Destroy()
	if obs, ok := in.metrics.(SegmentObserver); ok {
		obs.ForgetSegment(in.seg.Name())
	}
	in.logger.LogDestroy(context.Background(), n, err)
	return err
}
