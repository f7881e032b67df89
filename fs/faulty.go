package fs

import (
	"fmt"
	"io"
	"sync"
)

// Faulty wraps a FileSystem and injects write failures, for exercising a
// caller's error handling around backup writes without needing a real
// disk-full or network-partition condition. Adapted from the teacher's
// internal/fs.FaultyFS, narrowed to the OpenForWrite surface this
// package's FileSystem actually exposes.
type Faulty struct {
	FS FileSystem

	mu             sync.Mutex
	failAfterBytes int64 // -1 disables the limit
	failOnClose    bool
	written        int64
}

// NewFaulty wraps fsys (or Default, if nil) with no fault configured.
func NewFaulty(fsys FileSystem) *Faulty {
	if fsys == nil {
		fsys = Default
	}
	return &Faulty{FS: fsys, failAfterBytes: -1}
}

// FailAfterBytes makes every subsequent write fail once more than n total
// bytes have been written to any file opened through this Faulty.
func (f *Faulty) FailAfterBytes(n int64) *Faulty {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAfterBytes = n
	return f
}

// FailOnClose makes every Close on a file opened through this Faulty
// close the underlying stream and then return an injected error.
func (f *Faulty) FailOnClose() *Faulty {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOnClose = true
	return f
}

// OpenForRead implements FileSystem by delegating to FS unchanged; fault
// injection here only targets writes.
func (f *Faulty) OpenForRead(path string) (io.ReadCloser, error) {
	return f.FS.OpenForRead(path)
}

// OpenForWrite implements FileSystem, wrapping the underlying stream so
// writes past FailAfterBytes (and Close, if FailOnClose was set) return an
// injected error instead of succeeding.
func (f *Faulty) OpenForWrite(path string) (io.WriteCloser, error) {
	w, err := f.FS.OpenForWrite(path)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &faultyWriter{w: w, faulty: f}, nil
}

type faultyWriter struct {
	w      io.WriteCloser
	faulty *Faulty
}

func (fw *faultyWriter) Write(p []byte) (int, error) {
	fw.faulty.mu.Lock()
	limit := fw.faulty.failAfterBytes
	written := fw.faulty.written
	fw.faulty.mu.Unlock()

	if limit >= 0 && written+int64(len(p)) > limit {
		return 0, fmt.Errorf("fs: injected write fault after %d bytes", limit)
	}
	n, err := fw.w.Write(p)
	fw.faulty.mu.Lock()
	fw.faulty.written += int64(n)
	fw.faulty.mu.Unlock()
	return n, err
}

func (fw *faultyWriter) Close() error {
	fw.faulty.mu.Lock()
	failOnClose := fw.faulty.failOnClose
	fw.faulty.mu.Unlock()

	if failOnClose {
		fw.w.Close()
		return fmt.Errorf("fs: injected close fault")
	}
	return fw.w.Close()
}
