package session

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dicomstore/dicomstore/client"
	"github.com/dicomstore/dicomstore/dicom"
	dicomerrors "github.com/dicomstore/dicomstore/errors"
)

// SenderConfig configures a Sender's destination and connection behavior.
type SenderConfig struct {
	CallingAETitle string
	CalledAETitle  string
	Host           string
	Port           int
	Threads        int
	MaxPDULength   uint32
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Logger         zerolog.Logger
}

// Sender partitions a file set by study, fans it out across a bounded pool
// of workers, and sends each file via C-STORE on a per-worker association
// reused across its studies.
type Sender struct {
	config SenderConfig
}

// NewSender creates a Sender for the given destination configuration.
func NewSender(config SenderConfig) *Sender {
	if config.Threads <= 0 {
		config.Threads = 1
	}
	return &Sender{config: config}
}

type studyGroup struct {
	studyUID string
	files    []DicomFile
}

// SendFiles groups files by StudyInstanceUID and sends them through a pool
// of config.Threads workers. It returns the merged TransferStats across all
// workers and the sorted list of distinct study instance UIDs attempted.
func (s *Sender) SendFiles(files []DicomFile) (TransferStats, []string) {
	groups, studiesProcessed := groupByStudy(files)
	buckets := distributeRoundRobin(groups, s.config.Threads)

	logger := s.logger()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total TransferStats
	)

	for workerID, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		wg.Add(1)
		go func(workerID int, bucket []studyGroup) {
			defer wg.Done()
			stats := s.runWorker(workerID, bucket, logger)
			mu.Lock()
			total.Merge(stats)
			mu.Unlock()
		}(workerID, bucket)
	}

	wg.Wait()

	return total, studiesProcessed
}

func groupByStudy(files []DicomFile) ([]studyGroup, []string) {
	index := make(map[string]int)
	var groups []studyGroup

	for _, file := range files {
		if i, ok := index[file.StudyInstanceUID]; ok {
			groups[i].files = append(groups[i].files, file)
			continue
		}
		index[file.StudyInstanceUID] = len(groups)
		groups = append(groups, studyGroup{studyUID: file.StudyInstanceUID, files: []DicomFile{file}})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].studyUID < groups[j].studyUID })

	studies := make([]string, len(groups))
	for i, g := range groups {
		studies[i] = g.studyUID
	}

	return groups, studies
}

// distributeRoundRobin assigns studies to threads workers round-robin, so
// no single worker is starved when the study count doesn't divide evenly.
func distributeRoundRobin(groups []studyGroup, threads int) [][]studyGroup {
	buckets := make([][]studyGroup, threads)
	for i, g := range groups {
		w := i % threads
		buckets[w] = append(buckets[w], g)
	}
	return buckets
}

func (s *Sender) runWorker(workerID int, studies []studyGroup, logger zerolog.Logger) TransferStats {
	var stats TransferStats
	workerStart := time.Now()

	sopClasses := uniqueSOPClasses(studies)
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var assoc *client.Association
	var messageID uint16 = 1

	closeAssoc := func() {
		if assoc != nil {
			if err := assoc.Close(); err != nil {
				logger.Warn().Err(err).Int("worker", workerID).Msg("failed to close association cleanly")
			}
			assoc = nil
		}
	}
	defer closeAssoc()

	for _, study := range studies {
		if assoc == nil {
			conn, err := client.Connect(address, client.Config{
				CallingAETitle: s.config.CallingAETitle,
				CalledAETitle:  s.config.CalledAETitle,
				MaxPDULength:   s.config.MaxPDULength,
				ConnectTimeout: s.config.ConnectTimeout,
				ReadTimeout:    s.config.ReadTimeout,
				WriteTimeout:   s.config.WriteTimeout,
				Logger:         &logger,
				SOPClasses:     sopClasses,
			})
			if err != nil {
				logger.Error().Err(err).Int("worker", workerID).Str("study", study.studyUID).Msg("failed to open association for study")
				stats.TotalFiles += len(study.files)
				stats.Failed += len(study.files)
				continue
			}
			assoc = conn
		}

		for _, file := range study.files {
			stats.TotalFiles++

			elapsed, sentBytes, err := s.sendOneFile(assoc, file, messageID, logger)
			messageID++

			if err == nil {
				stats.Successful++
				stats.TotalBytes += sentBytes
				stats.TransferTimes = append(stats.TransferTimes, elapsed)
				continue
			}

			stats.Failed++

			if isTerminatingSendError(err) {
				logger.Error().Err(err).Int("worker", workerID).Str("path", file.Path).Msg("association-terminating error, reconnecting for next study")
				closeAssoc()
				break
			}

			logger.Warn().Err(err).Int("worker", workerID).Str("path", file.Path).Msg("failed to send file")
		}
	}

	stats.TotalTime = time.Since(workerStart)

	return stats
}

// sendOneFile reads, re-encodes for the negotiated transfer syntax, and
// transmits one file. The returned error is nil only on DIMSE success or
// warning status; a non-nil error is either a per-file failure (no route,
// non-success status) or a transport failure, distinguished by
// isTerminatingSendError.
func (s *Sender) sendOneFile(assoc *client.Association, file DicomFile, messageID uint16, logger zerolog.Logger) (time.Duration, int64, error) {
	raw, err := os.ReadFile(file.Path)
	if err != nil {
		return 0, 0, fmt.Errorf("read file: %w", err)
	}

	datasetBytes, originalTS, err := dicom.SplitPart10Header(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("strip part 10 header: %w", err)
	}

	dataset, err := dicom.ParseDatasetWithTransferSyntax(datasetBytes, originalTS)
	if err != nil {
		return 0, 0, fmt.Errorf("parse dataset: %w", err)
	}

	negotiatedTS, err := assoc.GetTransferSyntax(file.SOPClassUID)
	if err != nil {
		return 0, 0, fmt.Errorf("no presentation context for SOP class %s: %w", file.SOPClassUID, err)
	}

	encoded, err := dicom.EncodeDatasetWithTransferSyntax(dataset, negotiatedTS)
	if err != nil {
		return 0, 0, fmt.Errorf("encode dataset: %w", err)
	}

	req := &client.CStoreRequest{
		SOPClassUID:    file.SOPClassUID,
		SOPInstanceUID: file.SOPInstanceUID,
		Data:           encoded,
		MessageID:      messageID,
	}

	start := time.Now()
	resp, err := assoc.SendCStore(req)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, 0, &transportError{err: err}
	}

	if resp.Status != 0x0000 && (resp.Status&0xFF00) != 0xB000 {
		return elapsed, 0, dicomerrors.NewStoreFailedError(resp.Status)
	}

	logger.Debug().Str("path", file.Path).Uint16("status", resp.Status).Dur("elapsed", elapsed).Msg("sent file")

	return elapsed, int64(len(encoded)), nil
}

// transportError marks a send failure that broke the association's
// transport (as opposed to a clean DIMSE response with a failure status),
// so runWorker knows to reconnect rather than continue on the same socket.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTerminatingSendError(err error) bool {
	_, ok := err.(*transportError)
	return ok
}

func uniqueSOPClasses(studies []studyGroup) []string {
	seen := make(map[string]bool)
	var classes []string
	for _, study := range studies {
		for _, file := range study.files {
			if !seen[file.SOPClassUID] {
				seen[file.SOPClassUID] = true
				classes = append(classes, file.SOPClassUID)
			}
		}
	}
	return classes
}

func (s *Sender) logger() zerolog.Logger {
	if reflect.DeepEqual(s.config.Logger, zerolog.Logger{}) {
		return log.Logger
	}
	return s.config.Logger
}
