package utils

import (
	"io"
	"sync"
)

type flushableWriter interface {
	Flush() error
}

// FlushingWriter serializes writes to the wrapped writer and flushes it after
// every write when the writer supports flushing, so progress lines appear as
// soon as they are produced.
type FlushingWriter struct {
	underlyingWriter io.Writer
	writeGuard       sync.Mutex
}

// NewFlushingWriter wraps the provided writer. A nil writer yields nil and an
// already wrapped writer is returned unchanged.
func NewFlushingWriter(underlyingWriter io.Writer) io.Writer {
	if underlyingWriter == nil {
		return nil
	}
	if _, alreadyWrapped := underlyingWriter.(*FlushingWriter); alreadyWrapped {
		return underlyingWriter
	}
	return &FlushingWriter{underlyingWriter: underlyingWriter}
}

// Write delegates to the wrapped writer and flushes it when possible.
func (writer *FlushingWriter) Write(data []byte) (int, error) {
	if writer == nil || writer.underlyingWriter == nil {
		return 0, nil
	}

	writer.writeGuard.Lock()
	defer writer.writeGuard.Unlock()

	writtenBytes, writeError := writer.underlyingWriter.Write(data)
	if writeError != nil {
		return writtenBytes, writeError
	}

	if flushTarget, supportsFlush := writer.underlyingWriter.(flushableWriter); supportsFlush {
		if flushError := flushTarget.Flush(); flushError != nil {
			return writtenBytes, flushError
		}
	}

	return writtenBytes, nil
}
