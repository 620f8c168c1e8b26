package taproto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// frameMagic guards against a misbehaving peer on the UDS socket.
const frameMagic = 0x41414301 // "AAC" + version 1

// Request is a single invocation sent from the Client Proxy to the TA
// Dispatcher over the UDS transport: the logical equivalent of filling
// slot0 and a slot1 capacity hint.
type Request struct {
	Command      CommandID
	Input        []byte // slot0
	OutputCapMax uint32 // caller-declared capacity of slot1
}

// Response is what the TA Dispatcher writes back: the logical equivalent
// of slot1's contents, slot2.A, and the command status.
type Response struct {
	Status  byte // taerr.Kind, as a single byte
	Output  []byte
	ReqSize uint32 // slot2.A: bytes written, or the required size on ShortBuffer
}

// WriteRequest frames and writes a Request to w.
func WriteRequest(w io.Writer, req Request) error {
	wr := NewWriter()
	wr.PutUint32(frameMagic)
	wr.PutUint32(uint32(req.Command))
	wr.PutBytes(req.Input)
	wr.PutUint32(req.OutputCapMax)
	return writeFrame(w, wr.Bytes())
}

// ReadRequest reads and decodes a single Request from r.
func ReadRequest(r io.Reader) (Request, error) {
	buf, err := readFrame(r)
	if err != nil {
		return Request{}, err
	}
	rd := NewReader(buf)
	magic, err := rd.GetUint32()
	if err != nil || magic != frameMagic {
		return Request{}, fmt.Errorf("taproto: bad frame magic")
	}
	cmd, err := rd.GetUint32()
	if err != nil {
		return Request{}, err
	}
	input, err := rd.GetBytes()
	if err != nil {
		return Request{}, err
	}
	capMax, err := rd.GetUint32()
	if err != nil {
		return Request{}, err
	}
	return Request{Command: CommandID(cmd), Input: input, OutputCapMax: capMax}, nil
}

// WriteResponse frames and writes a Response to w.
func WriteResponse(w io.Writer, resp Response) error {
	wr := NewWriter()
	wr.PutUint32(frameMagic)
	wr.PutByte(resp.Status)
	wr.PutBytes(resp.Output)
	wr.PutUint32(resp.ReqSize)
	return writeFrame(w, wr.Bytes())
}

// ReadResponse reads and decodes a single Response from r.
func ReadResponse(r io.Reader) (Response, error) {
	buf, err := readFrame(r)
	if err != nil {
		return Response{}, err
	}
	rd := NewReader(buf)
	magic, err := rd.GetUint32()
	if err != nil || magic != frameMagic {
		return Response{}, fmt.Errorf("taproto: bad frame magic")
	}
	status, err := rd.GetByte()
	if err != nil {
		return Response{}, err
	}
	output, err := rd.GetBytes()
	if err != nil {
		return Response{}, err
	}
	reqSize, err := rd.GetUint32()
	if err != nil {
		return Response{}, err
	}
	return Response{Status: status, Output: output, ReqSize: reqSize}, nil
}

// writeFrame prefixes payload with its length and writes it atomically
// from the caller's perspective (single Write call after assembly).
func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	full := append(lenBuf[:], payload...)
	_, err := w.Write(full)
	return err
}

const maxFrameBytes = MaxInputBytes*2 + 4096

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("taproto: frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
