package dimse

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dicomstore/dicomstore/dicom"
	dicomerrors "github.com/dicomstore/dicomstore/errors"
	"github.com/dicomstore/dicomstore/interfaces"
	"github.com/dicomstore/dicomstore/types"
)

// Command types, mirrored from types for callers that only import dimse.
const (
	CStoreRQ  = types.CStoreRQ
	CStoreRSP = types.CStoreRSP
	CEchoRQ   = types.CEchoRQ
	CEchoRSP  = types.CEchoRSP
)

// Status codes, mirrored from types for callers that only import dimse.
const (
	StatusSuccess = types.StatusSuccess
	StatusPending = types.StatusPending
	StatusFailure = types.StatusFailure
)

// PDULayer is the subset of interfaces.PDULayer the Service depends on.
type PDULayer = interfaces.PDULayer

// Service manages DIMSE message reassembly and routes complete messages to
// a ServiceHandler. A Service instance is bound to one association and
// accumulates exactly one in-flight message at a time; C-STORE and C-ECHO
// are both request/response operations so there is never more than one
// outstanding response per request.
type Service struct {
	handler     interfaces.ServiceHandler
	commandData []byte
	datasetData []byte
	currentMsg  *types.Message
	logger      zerolog.Logger
	transferUID string
	contextID   byte
}

// NewService creates a new DIMSE service bound to handler. A nil logger
// falls back to the global zerolog logger.
func NewService(handler interfaces.ServiceHandler, logger *zerolog.Logger) *Service {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Service{
		handler: handler,
		logger:  l,
	}
}

// HandleDIMSEMessage processes one P-DATA-TF fragment, accumulating command
// or dataset bytes until a complete message has arrived, then dispatches it.
func (d *Service) HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer PDULayer) error {
	ctx := context.Background()

	d.logger.Debug().
		Uint8("context_id", presContextID).
		Str("control_header", fmt.Sprintf("0x%02x", msgCtrlHeader)).
		Msg("processing DIMSE fragment")

	tsUID, err := pduLayer.GetTransferSyntax(presContextID)
	if err != nil {
		d.logger.Warn().Err(err).Uint8("context_id", presContextID).Msg("failed to retrieve transfer syntax for presentation context")
	}
	if tsUID != "" {
		d.transferUID = tsUID
	}
	d.contextID = presContextID

	// Message control header bits:
	// bit0 (0x01) set   = command fragment
	// bit0 (0x01) clear = dataset fragment
	// bit1 (0x02) set   = last fragment of this PDV stream
	isCommand := (msgCtrlHeader & 0x01) != 0
	isLastFragment := (msgCtrlHeader & 0x02) != 0

	if isCommand {
		d.logger.Debug().Int("size_bytes", len(data)).Msg("received command fragment")
		if isLastFragment {
			d.commandData = data
			msg, err := parseDIMSECommand(data)
			if err != nil {
				return fmt.Errorf("failed to parse DIMSE command: %w", err)
			}
			d.currentMsg = msg

			if msg.CommandDataSetType == 0x0101 {
				return d.processCompleteMessage(ctx, presContextID, pduLayer)
			}
		} else {
			d.commandData = append(d.commandData, data...)
		}
		return nil
	}

	if d.currentMsg == nil {
		return dicomerrors.NewProtocolViolationError(fmt.Sprintf("data PDV received before command completed on context %d", presContextID))
	}

	d.logger.Debug().Int("size_bytes", len(data)).Msg("received dataset fragment")
	d.datasetData = append(d.datasetData, data...)
	if isLastFragment {
		return d.processCompleteMessage(ctx, presContextID, pduLayer)
	}
	return nil
}

// processCompleteMessage decodes the accumulated dataset (if any), invokes
// the handler, and sends its response back over the association.
func (d *Service) processCompleteMessage(ctx context.Context, presContextID byte, pduLayer PDULayer) error {
	if d.currentMsg == nil {
		return dicomerrors.NewProtocolViolationError("no current message to process")
	}

	d.logger.Info().
		Str("command_field", fmt.Sprintf("0x%04x", d.currentMsg.CommandField)).
		Uint16("message_id", d.currentMsg.MessageID).
		Int("dataset_size", len(d.datasetData)).
		Msg("processing complete DIMSE message")

	tsUID := d.transferUID
	if tsUID == "" {
		if negotiatedTS, err := pduLayer.GetTransferSyntax(presContextID); err == nil {
			tsUID = negotiatedTS
		} else {
			d.logger.Warn().Err(err).Uint8("context_id", presContextID).Msg("unable to determine transfer syntax for presentation context")
		}
	}
	d.currentMsg.TransferSyntaxUID = tsUID

	var parsedDataset *dicom.Dataset
	if len(d.datasetData) > 0 {
		var err error
		parsedDataset, err = dicom.ParseDatasetWithTransferSyntax(d.datasetData, tsUID)
		if err != nil {
			d.logger.Warn().Err(err).Str("transfer_syntax", tsUID).Msg("failed to parse dataset with negotiated transfer syntax")
		} else {
			d.logger.Debug().Str("transfer_syntax", tsUID).Msg("parsed dataset using transfer syntax")
		}
	}

	meta := interfaces.MessageContext{
		PresentationContextID: presContextID,
		TransferSyntaxUID:     tsUID,
		Dataset:               parsedDataset,
	}

	defer d.resetState()

	responseMsg, responseDataset, err := d.handler.HandleDIMSE(ctx, d.currentMsg, d.datasetData, meta)
	if err != nil {
		return fmt.Errorf("service handler failed: %w", err)
	}

	responseTS := responseMsg.TransferSyntaxUID
	if responseTS == "" {
		responseTS = tsUID
	}

	var encodedDataset []byte
	if responseDataset != nil {
		var encodeErr error
		encodedDataset, encodeErr = dicom.EncodeDatasetWithTransferSyntax(responseDataset, responseTS)
		if encodeErr != nil {
			return fmt.Errorf("failed to encode response dataset using transfer syntax %s: %w", responseTS, encodeErr)
		}
	}

	responseMsg.TransferSyntaxUID = responseTS
	return d.sendDIMSEResponse(responseMsg, encodedDataset, presContextID, pduLayer)
}

// FlushPartial returns whatever dataset bytes have been accumulated for the
// in-flight message and the presentation context they arrived on, and
// whether there was anything to flush at all. Callers use this after the
// connection ends without a final fragment to recover a partial transfer.
func (d *Service) FlushPartial() ([]byte, byte, bool) {
	if len(d.datasetData) == 0 {
		return nil, 0, false
	}
	return d.datasetData, d.contextID, true
}

func (d *Service) resetState() {
	d.commandData = nil
	d.datasetData = nil
	d.currentMsg = nil
	d.transferUID = ""
	d.contextID = 0
}

// sendDIMSEResponse encodes msg as a DIMSE command set and sends it, with
// an optional dataset, back over the association.
func (d *Service) sendDIMSEResponse(msg *types.Message, data []byte, presContextID byte, pduLayer PDULayer) error {
	commandData := d.createDIMSECommand(msg)
	return pduLayer.SendDIMSEResponseWithDataset(presContextID, commandData, data)
}

// createDIMSECommand encodes msg as an Implicit VR Little Endian command set.
func (d *Service) createDIMSECommand(msg *types.Message) []byte {
	var elements []byte

	// Affected SOP Class UID (0000,0002)
	if msg.AffectedSOPClassUID != "" {
		sopClassUID := msg.AffectedSOPClassUID
		if len(sopClassUID)%2 == 1 {
			sopClassUID += "\x00"
		}
		elements = append(elements, 0x00, 0x00, 0x02, 0x00) // Tag
		sopLen := make([]byte, 4)
		binary.LittleEndian.PutUint32(sopLen, uint32(len(sopClassUID)))
		elements = append(elements, sopLen...)
		elements = append(elements, []byte(sopClassUID)...)
	}

	// Command Field (0000,0100)
	elements = append(elements, 0x00, 0x00, 0x00, 0x01) // Tag
	elements = append(elements, 0x02, 0x00, 0x00, 0x00) // Length = 2
	cmdField := make([]byte, 2)
	binary.LittleEndian.PutUint16(cmdField, msg.CommandField)
	elements = append(elements, cmdField...)

	// Message ID (0000,0110) - for requests
	if msg.MessageID > 0 && msg.MessageIDBeingRespondedTo == 0 {
		elements = append(elements, 0x00, 0x00, 0x10, 0x01) // Tag
		elements = append(elements, 0x02, 0x00, 0x00, 0x00) // Length = 2
		msgID := make([]byte, 2)
		binary.LittleEndian.PutUint16(msgID, msg.MessageID)
		elements = append(elements, msgID...)
	}

	// Message ID Being Responded To (0000,0120)
	if msg.MessageIDBeingRespondedTo > 0 {
		elements = append(elements, 0x00, 0x00, 0x20, 0x01) // Tag
		elements = append(elements, 0x02, 0x00, 0x00, 0x00) // Length = 2
		msgID := make([]byte, 2)
		binary.LittleEndian.PutUint16(msgID, msg.MessageIDBeingRespondedTo)
		elements = append(elements, msgID...)
	}

	// Affected SOP Instance UID (0000,1000) - for C-STORE
	if msg.AffectedSOPInstanceUID != "" {
		sopInstanceUID := msg.AffectedSOPInstanceUID
		if len(sopInstanceUID)%2 == 1 {
			sopInstanceUID += "\x00"
		}
		elements = append(elements, 0x00, 0x00, 0x00, 0x10) // Tag
		sopInstLen := make([]byte, 4)
		binary.LittleEndian.PutUint32(sopInstLen, uint32(len(sopInstanceUID)))
		elements = append(elements, sopInstLen...)
		elements = append(elements, []byte(sopInstanceUID)...)
	}

	// CommandDataSetType (0000,0800)
	elements = append(elements, 0x00, 0x00, 0x00, 0x08) // Tag
	elements = append(elements, 0x02, 0x00, 0x00, 0x00) // Length = 2
	cmdDataSetType := make([]byte, 2)
	binary.LittleEndian.PutUint16(cmdDataSetType, msg.CommandDataSetType)
	elements = append(elements, cmdDataSetType...)

	// Status (0000,0900)
	elements = append(elements, 0x00, 0x00, 0x00, 0x09) // Tag
	elements = append(elements, 0x02, 0x00, 0x00, 0x00) // Length = 2
	status := make([]byte, 2)
	binary.LittleEndian.PutUint16(status, msg.Status)
	elements = append(elements, status...)

	// Add Group Length (0000,0000) at the beginning
	groupLengthValue := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLengthValue, uint32(len(elements)))

	var commandSet []byte
	commandSet = append(commandSet, 0x00, 0x00, 0x00, 0x00) // Group Length tag
	commandSet = append(commandSet, 0x04, 0x00, 0x00, 0x00) // Length = 4
	commandSet = append(commandSet, groupLengthValue...)    // Value
	commandSet = append(commandSet, elements...)

	return commandSet
}
