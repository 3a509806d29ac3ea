package client

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	dicomerrors "github.com/dicomstore/dicomstore/errors"
	"github.com/dicomstore/dicomstore/pdu"
	"github.com/dicomstore/dicomstore/types"
)

// implementationClassUID identifies this implementation to peers during
// association negotiation (DICOM PS3.7 Annex D.3.3.2). Kept in sync with
// pdu.ImplementationClassUID, which the Acceptor side presents.
const implementationClassUID = pdu.ImplementationClassUID

// Association represents a client-side DICOM association
type Association struct {
	conn                  net.Conn
	callingAETitle        string
	calledAETitle         string
	maxPDULength          uint32
	presentationCtxs      map[byte]*PresentationContext
	acceptedByAbstractUID map[string]byte
	logger                zerolog.Logger
	sopClasses            []string
	readTimeout           time.Duration
	writeTimeout          time.Duration
}

// PresentationContext holds negotiated presentation context info
type PresentationContext struct {
	ID             byte
	AbstractSyntax string
	TransferSyntax string
	Accepted       bool
}

// Config holds client configuration
type Config struct {
	CallingAETitle string
	CalledAETitle  string
	MaxPDULength   uint32
	ConnectTimeout time.Duration // Timeout for establishing connection (default: 30s)
	ReadTimeout    time.Duration // Timeout for read operations (default: 60s)
	WriteTimeout   time.Duration // Timeout for write operations (default: 60s)
	Logger         *zerolog.Logger

	// SOPClasses lists the abstract syntaxes the association must negotiate
	// a presentation context for, in addition to Verification (which is
	// always proposed so SendCEcho works regardless of what is sent).
	// Each class proposes the transfer syntaxes types.ProposedTransferSyntaxes
	// recommends for its category.
	SOPClasses []string
}

// Connect establishes a DICOM association with a remote SCP.
func Connect(address string, config Config) (*Association, error) {
	if config.MaxPDULength == 0 {
		config.MaxPDULength = 16384 // Default 16KB
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 60 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 60 * time.Second
	}

	dialer := &net.Dialer{
		Timeout: config.ConnectTimeout,
	}
	conn, err := dialer.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(config.ReadTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(config.WriteTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set write deadline: %w", err)
	}

	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	sopClasses := append([]string{types.VerificationSOPClass}, config.SOPClasses...)

	assoc := &Association{
		conn:                  conn,
		callingAETitle:        config.CallingAETitle,
		calledAETitle:         config.CalledAETitle,
		maxPDULength:          config.MaxPDULength,
		presentationCtxs:      make(map[byte]*PresentationContext),
		acceptedByAbstractUID: make(map[string]byte),
		logger:                logger,
		sopClasses:            sopClasses,
		readTimeout:           config.ReadTimeout,
		writeTimeout:          config.WriteTimeout,
	}

	if err := assoc.sendAssociateRQ(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send A-ASSOCIATE-RQ: %w", err)
	}

	if err := assoc.receiveAssociateAC(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to receive A-ASSOCIATE-AC: %w", err)
	}

	logger.Info().
		Str("remote_addr", address).
		Str("calling_ae", config.CallingAETitle).
		Str("called_ae", config.CalledAETitle).
		Int("accepted_contexts", len(assoc.acceptedByAbstractUID)).
		Msg("DICOM association established")

	return assoc, nil
}

// classifyWriteError reports a deadline-exceeded write as a TimeoutError and
// anything else as an IOError.
func (a *Association) classifyWriteError(op string, err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return dicomerrors.NewTimeoutError(op, a.writeTimeout.String())
	}
	return dicomerrors.NewIOError(op, err)
}

// classifyReadError reports a deadline-exceeded read as a TimeoutError and
// anything else as a FramingError, since a failed PDU-header/body read
// always indicates the stream is no longer parseable.
func (a *Association) classifyReadError(op string, err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return dicomerrors.NewTimeoutError(op, a.readTimeout.String())
	}
	return dicomerrors.NewFramingError(op, err)
}

// Close gracefully closes the association
func (a *Association) Close() error {
	if err := a.sendReleaseRQ(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to send release request")
	}

	a.receiveReleaseRP()

	return a.conn.Close()
}

// sendAssociateRQ sends an A-ASSOCIATE-RQ PDU proposing one presentation
// context per configured SOP class, odd context IDs starting at 1 as
// DICOM PS3.8 requires.
func (a *Association) sendAssociateRQ() error {
	buf := make([]byte, 0, 1024)

	buf = append(buf, 0x00, 0x01) // Protocol version
	buf = append(buf, 0x00, 0x00) // Reserved

	calledAE := make([]byte, 16)
	copy(calledAE, a.calledAETitle)
	for i := len(a.calledAETitle); i < 16; i++ {
		calledAE[i] = ' '
	}
	buf = append(buf, calledAE...)

	callingAE := make([]byte, 16)
	copy(callingAE, a.callingAETitle)
	for i := len(a.callingAETitle); i < 16; i++ {
		callingAE[i] = ' '
	}
	buf = append(buf, callingAE...)

	buf = append(buf, make([]byte, 32)...) // Reserved

	buf = append(buf, 0x10)                               // Item type
	buf = append(buf, 0x00)                               // Reserved
	buf = append(buf, 0x00, 0x15)                         // Length
	buf = append(buf, []byte(types.ApplicationContextUID)...)

	contextID := byte(1)
	for _, sopClassUID := range a.sopClasses {
		buf = a.addPresentationContext(buf, contextID, sopClassUID, types.ProposedTransferSyntaxes(sopClassUID))
		contextID += 2
	}

	buf = a.addUserInformation(buf)

	pduHeader := make([]byte, 6)
	pduHeader[0] = pdu.TypeAssociateRQ
	pduHeader[1] = 0x00
	binary.BigEndian.PutUint32(pduHeader[2:6], uint32(len(buf)))

	if _, err := a.conn.Write(pduHeader); err != nil {
		return a.classifyWriteError("write A-ASSOCIATE-RQ header", err)
	}
	if _, err := a.conn.Write(buf); err != nil {
		return a.classifyWriteError("write A-ASSOCIATE-RQ body", err)
	}

	return nil
}

// addPresentationContext adds a presentation context to the buffer
func (a *Association) addPresentationContext(buf []byte, contextID byte, abstractSyntax string, transferSyntaxes []string) []byte {
	pcStart := len(buf)

	buf = append(buf, 0x20)             // Item type
	buf = append(buf, 0x00)             // Reserved
	buf = append(buf, 0x00, 0x00)       // Length placeholder
	buf = append(buf, contextID)        // Presentation context ID
	buf = append(buf, 0x00, 0x00, 0x00) // Reserved

	buf = append(buf, 0x30)                            // Item type
	buf = append(buf, 0x00)                            // Reserved
	buf = append(buf, 0x00, byte(len(abstractSyntax))) // Length
	buf = append(buf, []byte(abstractSyntax)...)

	for _, ts := range transferSyntaxes {
		buf = append(buf, 0x40)                // Item type
		buf = append(buf, 0x00)                // Reserved
		buf = append(buf, 0x00, byte(len(ts))) // Length
		buf = append(buf, []byte(ts)...)
	}

	pcLength := len(buf) - pcStart - 4
	binary.BigEndian.PutUint16(buf[pcStart+2:pcStart+4], uint16(pcLength))

	a.presentationCtxs[contextID] = &PresentationContext{
		ID:             contextID,
		AbstractSyntax: abstractSyntax,
		Accepted:       false,
	}

	return buf
}

// addUserInformation adds user information to the buffer
func (a *Association) addUserInformation(buf []byte) []byte {
	uiStart := len(buf)

	buf = append(buf, 0x50)       // Item type
	buf = append(buf, 0x00)       // Reserved
	buf = append(buf, 0x00, 0x00) // Length placeholder

	buf = append(buf, 0x51)       // Item type
	buf = append(buf, 0x00)       // Reserved
	buf = append(buf, 0x00, 0x04) // Length
	maxLengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(maxLengthBytes, a.maxPDULength)
	buf = append(buf, maxLengthBytes...)

	buf = append(buf, 0x52)                                    // Item type
	buf = append(buf, 0x00)                                    // Reserved
	buf = append(buf, 0x00, byte(len(implementationClassUID))) // Length
	buf = append(buf, []byte(implementationClassUID)...)

	implVersion := "DICOMSTORE-0.1"
	buf = append(buf, 0x55)                         // Item type
	buf = append(buf, 0x00)                         // Reserved
	buf = append(buf, 0x00, byte(len(implVersion))) // Length
	buf = append(buf, []byte(implVersion)...)

	uiLength := len(buf) - uiStart - 4
	binary.BigEndian.PutUint16(buf[uiStart+2:uiStart+4], uint16(uiLength))

	return buf
}

// receiveAssociateAC receives and parses A-ASSOCIATE-AC
func (a *Association) receiveAssociateAC() error {
	header := make([]byte, 6)
	if _, err := io.ReadFull(a.conn, header); err != nil {
		return a.classifyReadError("read A-ASSOCIATE-AC header", err)
	}

	pduType := header[0]
	pduLength := binary.BigEndian.Uint32(header[2:6])

	data := make([]byte, pduLength)
	if _, err := io.ReadFull(a.conn, data); err != nil {
		return a.classifyReadError("read A-ASSOCIATE-AC body", err)
	}

	if pduType == pdu.TypeAssociateRJ {
		result := dicomerrors.AssociationRejectResult(0)
		source := dicomerrors.AssociationRejectSource(0)
		reason := dicomerrors.AssociationRejectReason(0)
		if len(data) >= 4 {
			result = dicomerrors.AssociationRejectResult(data[1])
			source = dicomerrors.AssociationRejectSource(data[2])
			reason = dicomerrors.AssociationRejectReason(data[3])
		}
		return dicomerrors.NewRejectedError(result, source, reason)
	}

	if pduType == pdu.TypeAbort {
		source := byte(0)
		reason := byte(0)
		if len(data) >= 4 {
			source = data[2]
			reason = data[3]
		}
		return dicomerrors.NewAbortedError(source, reason)
	}

	if pduType != pdu.TypeAssociateAC {
		return dicomerrors.NewProtocolViolationError(fmt.Sprintf("unexpected PDU type 0x%02x while awaiting A-ASSOCIATE-AC", pduType))
	}

	offset := 68 // Skip fixed fields; the app context item is walked below
	for offset+4 <= len(data) {
		itemType := data[offset]
		itemLength := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		itemEnd := offset + 4 + int(itemLength)
		if itemEnd > len(data) {
			break
		}

		if itemType == 0x21 { // Presentation Context Result
			contextID := data[offset+4]
			result := byte(0xff)
			if itemLength >= 4 {
				result = data[offset+6]
			}

			transferSyntax := ""
			subOffset := offset + 8
			for subOffset+4 <= itemEnd {
				subItemType := data[subOffset]
				subItemLength := binary.BigEndian.Uint16(data[subOffset+2 : subOffset+4])
				subItemEnd := subOffset + 4 + int(subItemLength)
				if subItemEnd > itemEnd {
					break
				}

				if subItemType == 0x40 && subItemLength > 0 {
					tsVal := string(data[subOffset+4 : subItemEnd])
					transferSyntax = strings.TrimRight(tsVal, "\x00 ")
				}

				subOffset = subItemEnd
			}

			if pc, ok := a.presentationCtxs[contextID]; ok {
				pc.Accepted = result == 0
				if pc.Accepted && transferSyntax != "" {
					pc.TransferSyntax = transferSyntax
					a.acceptedByAbstractUID[pc.AbstractSyntax] = pc.ID
				}
				a.logger.Debug().
					Uint8("context_id", contextID).
					Str("abstract_syntax", pc.AbstractSyntax).
					Uint8("result", result).
					Bool("accepted", pc.Accepted).
					Str("transfer_syntax", pc.TransferSyntax).
					Msg("presentation context negotiation")
			}
		}

		offset = itemEnd
	}

	return nil
}

// sendReleaseRQ sends an A-RELEASE-RQ PDU
func (a *Association) sendReleaseRQ() error {
	pduData := make([]byte, 6)
	pduData[0] = pdu.TypeReleaseRQ
	pduData[1] = 0x00
	binary.BigEndian.PutUint32(pduData[2:6], 4) // Length is always 4
	reserved := make([]byte, 4)

	if _, err := a.conn.Write(pduData); err != nil {
		return err
	}
	if _, err := a.conn.Write(reserved); err != nil {
		return err
	}

	return nil
}

// receiveReleaseRP receives A-RELEASE-RP (or timeout)
func (a *Association) receiveReleaseRP() error {
	header := make([]byte, 6)
	if _, err := io.ReadFull(a.conn, header); err != nil {
		return err // Connection closed or timeout
	}

	pduType := header[0]
	pduLength := binary.BigEndian.Uint32(header[2:6])

	if pduType != pdu.TypeReleaseRP {
		return fmt.Errorf("unexpected PDU type: 0x%02x", pduType)
	}

	data := make([]byte, pduLength)
	io.ReadFull(a.conn, data)

	return nil
}

// GetPresentationContextID finds the accepted presentation context for the
// given abstract syntax in constant time.
func (a *Association) GetPresentationContextID(abstractSyntax string) (byte, error) {
	id, ok := a.acceptedByAbstractUID[abstractSyntax]
	if !ok {
		if len(a.acceptedByAbstractUID) == 0 {
			return 0, dicomerrors.NewNoAcceptedContextError()
		}
		return 0, dicomerrors.NewNoContextForSopClassError(abstractSyntax)
	}
	return id, nil
}

// GetTransferSyntax returns the transfer syntax negotiated for the accepted
// presentation context whose abstract syntax is abstractSyntax, so a caller
// can re-serialize a dataset before sending it on that context.
func (a *Association) GetTransferSyntax(abstractSyntax string) (string, error) {
	id, err := a.GetPresentationContextID(abstractSyntax)
	if err != nil {
		return "", err
	}
	pc, ok := a.presentationCtxs[id]
	if !ok {
		return "", dicomerrors.NewNoContextForSopClassError(abstractSyntax)
	}
	return pc.TransferSyntax, nil
}
