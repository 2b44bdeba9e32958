package gip

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// A Handle is a reference counted Dataset shared by several GeoData. The
// dataset is flushed and closed when the last reference is released.
//
// Reference counting is atomic, but the Handle adds no locking around the
// Dataset itself: concurrent writers sharing one Handle race at the backend level.
type Handle struct {
	ds     Dataset
	refs   atomic.Int32
	logger *zap.Logger
}

func newHandle(ds Dataset, logger *zap.Logger) *Handle {
	h := &Handle{ds: ds, logger: logger}
	h.refs.Store(1)
	return h
}

// Dataset returns the shared dataset
func (h *Handle) Dataset() Dataset {
	return h.ds
}

// Refs returns the current number of references
func (h *Handle) Refs() int32 {
	return h.refs.Load()
}

// Acquire adds a reference and returns h
func (h *Handle) Acquire() *Handle {
	h.refs.Add(1)
	return h
}

// Release drops a reference. When it was the last one, the dataset is flushed
// and then closed; close is attempted even if flushing failed, and both errors
// are returned. Releasing an already released handle is a no-op.
func (h *Handle) Release() error {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return nil
		}
		if h.refs.CompareAndSwap(n, n-1) {
			if n > 1 {
				return nil
			}
			break
		}
	}
	var ferr, cerr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				ferr = fmt.Errorf("flush panicked: %v", r)
			}
		}()
		if err := h.ds.Flush(); err != nil {
			ferr = fmt.Errorf("flush: %w", err)
		}
	}()
	if err := h.ds.Close(); err != nil {
		cerr = fmt.Errorf("close: %w", err)
	}
	err := errors.Join(ferr, cerr)
	if err != nil && h.logger != nil {
		h.logger.Error("release dataset", zap.Error(err))
	}
	return err
}
