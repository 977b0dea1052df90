package isecnet

import "fmt"

// ResponseKind classifies an inbound wrapped ISECMobile response.
type ResponseKind int

const (
	KindUnknown ResponseKind = iota
	KindAck
	KindNack
	KindData
)

func (k ResponseKind) String() string {
	switch k {
	case KindAck:
		return "Ack"
	case KindNack:
		return "Nack"
	case KindData:
		return "Data"
	default:
		return "Unknown"
	}
}

// nackReasons is the exhaustive NACK code table. 0xE9 is intentionally
// absent: it collides with the outer carrier command byte.
var nackReasons = map[byte]string{
	0xE0: "invalid packet",
	0xE1: "wrong password",
	0xE2: "invalid command",
	0xE3: "not partitioned",
	0xE4: "zones open",
	0xE5: "discontinued",
	0xE6: "no bypass permission",
	0xE7: "no disarm permission",
	0xE8: "bypass not allowed while armed",
	0xEA: "no zones in partition",
}

// Response is the classified result of an inbound wrapped frame.
type Response struct {
	Kind     ResponseKind
	Code     byte
	Data     []byte
	RawFrame *Frame
}

// IsSuccess reports whether this is an Ack.
func (r *Response) IsSuccess() bool { return r.Kind == KindAck }

// IsError reports whether this is a Nack.
func (r *Response) IsError() bool { return r.Kind == KindNack }

// Message returns a human-readable description of a Nack's reason, or "".
func (r *Response) Message() string {
	if r.Kind != KindNack {
		return ""
	}
	if msg, ok := nackReasons[r.Code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown nack code 0x%02X", r.Code)
}

// ClassifyResponse implements the classification rules of the ISECMobile
// response taxonomy, matching the original implementation's literal order:
// a content length of 43 or more is treated as a status-data payload
// unconditionally, even if its first byte would otherwise look like a NACK
// code — the original ships this behavior in production and it is
// preserved here (see DESIGN.md for the rejected "exact length only"
// alternative from the base specification's open question).
func ClassifyResponse(content []byte) *Response {
	if len(content) == 0 {
		return &Response{Kind: KindUnknown}
	}
	if len(content) >= 43 {
		return &Response{Kind: KindData, Data: content}
	}
	if content[0] == ResponseAck {
		return &Response{Kind: KindAck, Data: content[1:]}
	}
	if content[0] >= 0xE0 && content[0] <= 0xEA {
		return &Response{Kind: KindNack, Code: content[0]}
	}
	if len(content) > 1 {
		return &Response{Kind: KindData, Data: content}
	}
	return &Response{Kind: KindUnknown}
}

// ParseResponse classifies the content of a wrapped frame and records the
// originating raw frame for callers that need the untouched bytes (e.g.
// the status parser needs to know whether the payload was ACK-prefixed).
func ParseResponse(frame *Frame) *Response {
	resp := ClassifyResponse(frame.Content)
	resp.RawFrame = frame
	return resp
}
