// Package interfaces contains all service and handler interfaces
package interfaces

import (
	"context"

	"github.com/dicomstore/dicomstore/dicom"
	"github.com/dicomstore/dicomstore/types"
)

// MessageContext carries per-message metadata that rides alongside a DIMSE
// command but is not itself part of the command set: which presentation
// context the message arrived on, the transfer syntax that context
// negotiated, and the dataset DIMSE has already decoded for the handler.
type MessageContext struct {
	PresentationContextID byte
	TransferSyntaxUID     string
	Dataset               *dicom.Dataset
}

// ServiceHandler processes a single DIMSE request and returns its response.
type ServiceHandler interface {
	HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, meta MessageContext) (*types.Message, *dicom.Dataset, error)
}

// PartialDatasetFlusher is implemented by a ServiceHandler that wants a
// chance to persist whatever dataset bytes had already arrived for an
// in-flight DIMSE message when the connection ends before that message
// completed (e.g. the peer aborted mid-transfer). The server calls
// FlushPartialDataset at most once per connection, only when the accumulated
// dataset is non-empty.
type PartialDatasetFlusher interface {
	FlushPartialDataset(data []byte, presentationContextID byte)
}

// DIMSEHandler interface for PDU layer to communicate with DIMSE layer
type DIMSEHandler interface {
	HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer PDULayer) error
}

// PDULayer interface for DIMSE layer to communicate with PDU layer
type PDULayer interface {
	SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, dataset []byte) error
	GetTransferSyntax(presContextID byte) (string, error)
}
