// Package rpc implements the network RPC client of §4.G: request/response
// correlation against remote field names over the binary-framed protocol
// of §6. Grounded on internal/transport/grpc_client.go's reconnect/backoff
// shape, generalized from gRPC framing to the ring-buffer/wire-codec
// framing §4.B/§4.C mandate — see SPEC_FULL.md's domain-stack table for why
// grpc/protobuf are dropped in favour of this custom codec.
package rpc

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/netio"
)

// Opcode identifies a request kind on the wire (§4.G "Supported ops").
type Opcode uint8

const (
	OpGetFieldType Opcode = 1
	OpGetValue     Opcode = 2
	OpPutValue     Opcode = 3
)

// maxPayloadLen bounds a response payload's advertised length: an
// advertised length beyond this is refused outright rather than trusted
// (§6 "a response larger than the advertised payload-length MUST be
// refused").
const maxPayloadLen = 16 << 20

// writeRequest frames and sends one request: a one-byte opcode, the
// 16-byte request ID used to correlate the matching response (§4.G
// "requests are numbered and correlated with responses"), the
// null-terminated field identifier, and (for OpPutValue) a
// length-prefixed payload of canonical §4.C tokens.
func writeRequest(s *netio.Socket, id uuid.UUID, op Opcode, fieldID string, payload []byte) error {
	buf := make([]byte, 0, 1+16+len(fieldID)+1+4+len(payload))
	buf = append(buf, byte(op))
	idBytes, _ := id.MarshalBinary()
	buf = append(buf, idBytes...)
	buf = append(buf, fieldID...)
	buf = append(buf, 0)
	if op == OpPutValue {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, payload...)
	}
	_, err := s.Send(buf)
	return err
}

// response is a decoded reply frame: the correlated request ID, a status
// (mxerr.Unknown means success), and its payload (the §4.C token text for
// GetValue/GetFieldType, empty for PutValue acknowledgements).
type response struct {
	id      uuid.UUID
	status  mxerr.Kind
	message string
	payload []byte
}

// readResponse reads one response frame: a 16-byte request ID, a 4-byte
// big-endian status code, a 4-byte big-endian payload length, then exactly
// that many payload bytes. Status 0 (mxerr.Unknown) means success; any
// other value is the mxerr.Kind of a server-reported failure, with the
// payload carrying the failure message text.
func readResponse(s *netio.Socket, timeout time.Duration) (*response, error) {
	header := make([]byte, 16+8)
	if _, _, err := s.Receive(header, nil, timeout); err != nil {
		return nil, err
	}
	id, err := uuid.FromBytes(header[0:16])
	if err != nil {
		return nil, mxerr.Wrap("rpc", mxerr.CorruptDataStructure, "malformed response request id", err)
	}
	status := mxerr.Kind(binary.BigEndian.Uint32(header[16:20]))
	payloadLen := binary.BigEndian.Uint32(header[20:24])
	if payloadLen > maxPayloadLen {
		return nil, mxerr.Newf("rpc", mxerr.CorruptDataStructure,
			"response advertises payload length %d exceeding the %d-byte limit, refusing", payloadLen, maxPayloadLen)
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, _, err := s.Receive(payload, nil, timeout); err != nil {
			return nil, err
		}
	}

	r := &response{id: id, status: status, payload: payload}
	if status != mxerr.Unknown {
		r.message = string(payload)
	}
	return r, nil
}

// writeResponse is the server-side counterpart, used by the in-process
// test fake server to exercise Client against a real socket pair.
func writeResponse(s *netio.Socket, id uuid.UUID, status mxerr.Kind, payload []byte) error {
	buf := make([]byte, 16+8+len(payload))
	idBytes, _ := id.MarshalBinary()
	copy(buf[0:16], idBytes)
	binary.BigEndian.PutUint32(buf[16:20], uint32(status))
	binary.BigEndian.PutUint32(buf[20:24], uint32(len(payload)))
	copy(buf[24:], payload)
	_, err := s.Send(buf)
	return err
}

// readRequest is the server-side counterpart to writeRequest.
func readRequest(s *netio.Socket, timeout time.Duration) (id uuid.UUID, op Opcode, fieldID string, payload []byte, err error) {
	head := make([]byte, 1+16)
	if _, _, err = s.Receive(head, nil, timeout); err != nil {
		return uuid.UUID{}, 0, "", nil, err
	}
	op = Opcode(head[0])
	id, err = uuid.FromBytes(head[1:17])
	if err != nil {
		return uuid.UUID{}, 0, "", nil, mxerr.Wrap("rpc", mxerr.CorruptDataStructure, "malformed request id", err)
	}

	idBuf := make([]byte, 256)
	n, _, err := s.Receive(idBuf, [][]byte{{0}}, timeout)
	if err != nil {
		return uuid.UUID{}, 0, "", nil, err
	}
	fieldID = string(idBuf[:n])

	if op == OpPutValue {
		lenBuf := make([]byte, 4)
		if _, _, err = s.Receive(lenBuf, nil, timeout); err != nil {
			return uuid.UUID{}, 0, "", nil, err
		}
		payloadLen := binary.BigEndian.Uint32(lenBuf)
		payload = make([]byte, payloadLen)
		if payloadLen > 0 {
			if _, _, err = s.Receive(payload, nil, timeout); err != nil {
				return uuid.UUID{}, 0, "", nil, err
			}
		}
	}

	return id, op, fieldID, payload, nil
}
