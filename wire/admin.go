package wire

import "github.com/ugorji/go/codec"

// EndpointsInfo is the payload of an ENDPOINTS admin-query reply (§4.3). It
// is msgpack-encoded rather than carried as a gogo message: this is a
// small, infrequently-sent, client-facing payload, the same shape of problem
// cmd/kv/statemachine.go's state-machine snapshot payload solves with
// github.com/ugorji/go/codec, so it borrows the same encoder instead of
// growing the gogo message set for one diagnostic reply.
type EndpointsInfo struct {
	MemberId            int32  `codec:"member_id"`
	MemberStatusChannel string `codec:"member_status_channel"`
	LogChannel          string `codec:"log_channel"`
	IngressChannel      string `codec:"ingress_channel"`
}

var msgpackHandle codec.MsgpackHandle

// EncodeEndpoints msgpack-encodes an EndpointsInfo payload.
func EncodeEndpoints(info EndpointsInfo) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, &msgpackHandle).Encode(info); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeEndpoints decodes a msgpack-encoded EndpointsInfo payload.
func DecodeEndpoints(data []byte) (EndpointsInfo, error) {
	var info EndpointsInfo
	err := codec.NewDecoderBytes(data, &msgpackHandle).Decode(&info)
	return info, err
}
