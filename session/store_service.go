package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dicomstore/dicomstore/dicom"
	"github.com/dicomstore/dicomstore/dimse"
	"github.com/dicomstore/dicomstore/interfaces"
	"github.com/dicomstore/dicomstore/types"
)

// StoreService implements interfaces.ServiceHandler for C-STORE-RQ,
// persisting each received dataset to outputDir and returning a proper
// C-STORE-RSP built from the request's affected SOP class/instance, rather
// than a fixed byte blob.
type StoreService struct {
	outputDir string
	logger    zerolog.Logger
}

// NewStoreService creates a StoreService writing received files under
// outputDir, which is created if it does not already exist.
func NewStoreService(outputDir string, logger zerolog.Logger) (*StoreService, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	l := logger
	if reflect.DeepEqual(l, zerolog.Logger{}) {
		l = log.Logger
	}
	return &StoreService{outputDir: outputDir, logger: l}, nil
}

// HandleDIMSE persists the dataset fragment bytes it is handed verbatim to
// outputDir and acknowledges with a C-STORE-RSP. A write failure is
// reported to the peer as a failure status rather than aborting the
// association; only the DIMSE exchange itself failing returns an error.
func (s *StoreService) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, meta interfaces.MessageContext) (*types.Message, *dicom.Dataset, error) {
	status := uint16(dimse.StatusSuccess)

	path, err := s.persist(data, meta.PresentationContextID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("sop_instance", msg.AffectedSOPInstanceUID).
			Msg("failed to persist received dataset")
		status = dimse.StatusFailure
	} else {
		s.logger.Info().
			Str("path", path).
			Str("sop_class", msg.AffectedSOPClassUID).
			Str("sop_instance", msg.AffectedSOPInstanceUID).
			Int("bytes", len(data)).
			Msg("stored received dataset")
	}

	response := &types.Message{
		CommandField:              dimse.CStoreRSP,
		MessageIDBeingRespondedTo: msg.MessageID,
		AffectedSOPClassUID:       msg.AffectedSOPClassUID,
		AffectedSOPInstanceUID:    msg.AffectedSOPInstanceUID,
		CommandDataSetType:        0x0101,
		Status:                    status,
	}

	return response, nil, nil
}

// FlushPartialDataset persists a dataset that was still being reassembled
// when its connection ended, under the same naming scheme as a completed
// transfer, so a mid-transfer abort doesn't silently lose bytes already on
// the wire.
func (s *StoreService) FlushPartialDataset(data []byte, presentationContextID byte) {
	path, err := s.persist(data, presentationContextID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to persist partial dataset from terminated connection")
		return
	}
	s.logger.Warn().Str("path", path).Int("bytes", len(data)).Msg("persisted partial dataset from terminated connection")
}

// persist writes raw dataset bytes to outputDir under the naming scheme
// received_<UTC timestamp>_<presentation context ID>.dcm.
func (s *StoreService) persist(data []byte, contextID byte) (string, error) {
	filename := receivedFilename(time.Now().UTC(), contextID)
	path := filepath.Join(s.outputDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func receivedFilename(t time.Time, contextID byte) string {
	stamp := fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/1000)
	return fmt.Sprintf("received_%s_%d.dcm", stamp, contextID)
}

