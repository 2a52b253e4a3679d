package provision

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// Markers are the five tokens that introduce handshake fields.
type Markers struct {
	FilesystemUI  string
	Filesystem    string
	CoordinatorUI string
	Coordinator   string
	ClusterConf   string
}

// DefaultMarkers returns the canonical token set.
func DefaultMarkers() Markers {
	return Markers{
		FilesystemUI:  "hdfsUI:",
		Filesystem:    "hdfs:",
		CoordinatorUI: "mapredUI:",
		Coordinator:   "mapred:",
		ClusterConf:   "hadoopConf:",
	}
}

// Fields holds the captured handshake values. An empty string means the
// field was never finalized.
type Fields struct {
	FilesystemUI  string
	Filesystem    string
	CoordinatorUI string
	Coordinator   string
	ClusterConf   string
}

// field identifies the capture target while the parser is in a capturing
// state.
type field int

const (
	fieldNone field = iota
	fieldFilesystemUI
	fieldFilesystem
	fieldCoordinatorUI
	fieldCoordinator
	fieldClusterConf
)

// ParseStream runs the byte-at-a-time marker state machine over r.
//
// The parser accumulates bytes into a line buffer. When the buffer's tail
// matches a marker token the parser switches to capturing that field and
// clears the buffer, so accumulation restarts for the value. A line
// terminator while capturing finalizes the trimmed buffer as the field's
// value. Reading stops once the coordinator field is finalized or the
// stream closes, whichever comes first.
//
// ParseStream itself never judges completeness; the caller decides what a
// missing field means.
func ParseStream(r io.Reader, markers Markers, logger *slog.Logger) (Fields, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		out     Fields
		buf     strings.Builder
		current = fieldNone
		br      = bufio.NewReader(r)
	)

	finalize := func() {
		value := strings.TrimSpace(buf.String())
		switch current {
		case fieldFilesystemUI:
			out.FilesystemUI = value
			logger.Info("filesystem web UI discovered", "endpoint", value)
		case fieldFilesystem:
			out.Filesystem = value
			logger.Info("filesystem discovered", "endpoint", value)
		case fieldCoordinatorUI:
			out.CoordinatorUI = value
			logger.Info("job coordinator web UI discovered", "endpoint", value)
		case fieldCoordinator:
			out.Coordinator = value
			logger.Info("job coordinator discovered", "endpoint", value)
		case fieldClusterConf:
			out.ClusterConf = value
			logger.Info("cluster configuration discovered", "path", value)
		}
		current = fieldNone
		buf.Reset()
	}

	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, newError(ErrCodeIO, "read provisioning stream: %v", err).withCause(err)
		}

		if c == '\n' || c == '\r' {
			finalize()
			// Reading stops as soon as the coordinator endpoint is in.
			if out.Coordinator != "" {
				return out, nil
			}
			continue
		}

		buf.WriteByte(c)
		tail := buf.String()
		switch {
		case strings.HasSuffix(tail, markers.FilesystemUI):
			current = fieldFilesystemUI
			buf.Reset()
		case strings.HasSuffix(tail, markers.Filesystem):
			current = fieldFilesystem
			buf.Reset()
		case strings.HasSuffix(tail, markers.CoordinatorUI):
			current = fieldCoordinatorUI
			buf.Reset()
		case strings.HasSuffix(tail, markers.Coordinator):
			current = fieldCoordinator
			buf.Reset()
		case strings.HasSuffix(tail, markers.ClusterConf):
			current = fieldClusterConf
			buf.Reset()
		}
	}
}

func (e *Error) withCause(cause error) *Error {
	e.Cause = cause
	return e
}
