// Package session provides the Sender and Receiver orchestrators: the
// study-grouping worker pool that drives C-STORE transmission for a set of
// local files, and the accept-loop-to-disk handler for an incoming
// association. Neither has a counterpart in the association/DIMSE layers
// below it; both are built directly against client, server, dimse and dicom.
package session

import (
	"strings"
	"time"
)

// Placeholder UIDs assigned to a file when the indexing collaborator cannot
// find the corresponding element. The file is still attempted rather than
// skipped.
const (
	UnknownStudyUID    = "UNKNOWN_STUDY"
	UnknownSeriesUID   = "UNKNOWN_SERIES"
	UnknownSOPInstance = "UNKNOWN_SOP_INSTANCE"
	UnknownSOPClass    = "UNKNOWN_SOP_CLASS"
)

// DicomFile describes one local DICOM object discovered by the indexing
// collaborator. Immutable once constructed.
type DicomFile struct {
	Path              string
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
	SOPClassUID       string
	FileSize          int64
	Modality          string
	PatientID         string
	StudyDate         string
}

// hasRequiredUIDs reports whether indexing found all four UIDs the store
// orchestrator needs to route the file, rather than a placeholder.
func (f DicomFile) hasRequiredUIDs() bool {
	return f.StudyInstanceUID != UnknownStudyUID &&
		f.SeriesInstanceUID != UnknownSeriesUID &&
		f.SOPInstanceUID != UnknownSOPInstance &&
		f.SOPClassUID != UnknownSOPClass
}

// TransferStats accumulates the outcome of sending a set of files.
type TransferStats struct {
	TotalFiles    int
	Successful    int
	Failed        int
	TotalBytes    int64
	TransferTimes []time.Duration
	TotalTime     time.Duration
}

// Merge folds other's counters into s, used to combine per-worker stats into
// a session total. TransferTimes are concatenated; TotalTime takes the
// larger of the two, since workers run concurrently and the session's wall
// clock is whichever worker finishes last.
func (s *TransferStats) Merge(other TransferStats) {
	s.TotalFiles += other.TotalFiles
	s.Successful += other.Successful
	s.Failed += other.Failed
	s.TotalBytes += other.TotalBytes
	s.TransferTimes = append(s.TransferTimes, other.TransferTimes...)
	if other.TotalTime > s.TotalTime {
		s.TotalTime = other.TotalTime
	}
}

// ThroughputMBps returns total bytes transferred divided by total elapsed
// time, in mebibytes per second. Zero elapsed time yields zero rather than
// dividing by zero.
func (s TransferStats) ThroughputMBps() float64 {
	seconds := s.TotalTime.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(s.TotalBytes) / (1024 * 1024) / seconds
}

// AverageTransferTimeMs returns the mean of TransferTimes in milliseconds.
func (s TransferStats) AverageTransferTimeMs() float64 {
	if len(s.TransferTimes) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s.TransferTimes {
		total += d
	}
	avg := total / time.Duration(len(s.TransferTimes))
	return float64(avg.Microseconds()) / 1000.0
}

// trimUID strips whitespace and NUL padding DICOM string values are
// conventionally padded with.
func trimUID(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\x00")
}
