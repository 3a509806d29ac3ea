package dimse

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dicomstore/dicomstore/types"
)

// parseDIMSECommand parses the group-0000 command elements of a DIMSE
// command set encoded in Implicit VR Little Endian.
func parseDIMSECommand(data []byte) (*types.Message, error) {
	msg := &types.Message{}

	if len(data) < 12 {
		return nil, fmt.Errorf("DIMSE data too short: %d bytes", len(data))
	}

	offset := 0
	for offset < len(data)-8 {
		if offset+8 > len(data) {
			break
		}

		group := binary.LittleEndian.Uint16(data[offset : offset+2])
		element := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		length := binary.LittleEndian.Uint32(data[offset+4 : offset+8])

		if length > 1000000 { // 1MB limit, guards against misparsed offsets
			log.Warn().Uint32("length", length).Msg("command element length too large, stopping parse")
			break
		}

		if offset+8+int(length) > len(data) {
			break
		}

		if group == 0x0000 {
			valueStart := offset + 8
			valueEnd := valueStart + int(length)

			switch element {
			case 0x0100: // Command Field
				if length == 2 {
					msg.CommandField = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x0110: // Message ID
				if length == 2 {
					msg.MessageID = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x0120: // Message ID Being Responded To
				if length == 2 {
					msg.MessageIDBeingRespondedTo = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x0800: // Command Data Set Type
				if length == 2 {
					msg.CommandDataSetType = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x0900: // Status
				if length == 2 {
					msg.Status = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x0002: // Affected SOP Class UID
				msg.AffectedSOPClassUID = trimUID(data[valueStart:valueEnd])
			case 0x1000: // Affected SOP Instance UID
				msg.AffectedSOPInstanceUID = trimUID(data[valueStart:valueEnd])
			}
		}

		offset += 8 + int(length)
		if length%2 == 1 {
			offset++ // Command sets pad odd-length values to an even boundary
		}
	}

	return msg, nil
}

func trimUID(raw []byte) string {
	value := string(raw)
	if idx := strings.IndexByte(value, 0); idx != -1 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}
