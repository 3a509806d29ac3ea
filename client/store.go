package client

import (
	"fmt"

	"github.com/dicomstore/dicomstore/dimse"
)

// CStoreRequest represents a C-STORE request
type CStoreRequest = dimse.CStoreRequest

// CStoreResponse represents a C-STORE response
type CStoreResponse = dimse.CStoreResponse

// SendCStore sends a C-STORE request over the negotiated presentation
// context for the request's SOP class and waits for the response.
func (a *Association) SendCStore(req *CStoreRequest) (*CStoreResponse, error) {
	presContextID, err := a.GetPresentationContextID(req.SOPClassUID)
	if err != nil {
		return nil, fmt.Errorf("no presentation context for SOP class %s: %w", req.SOPClassUID, err)
	}

	resp, err := dimse.SendCStore(a.conn, presContextID, a.maxPDULength, req)
	if err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("sop_class", req.SOPClassUID).
		Str("sop_instance", req.SOPInstanceUID).
		Int("data_size", len(req.Data)).
		Uint16("status", resp.Status).
		Msg("sent C-STORE-RQ")

	return resp, nil
}
