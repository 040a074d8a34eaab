package nexusrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	gjson "github.com/goccy/go-json"
)

// JSON/Pretty/FromBytes below follow the teacher's HDR.JSON/.Pretty/
// Unbytes idiom (hdr.go): encode with stdlib encoding/json, decode
// with goccy/go-json, used for vv trace dumps and test diagnostics
// rather than the wire codec itself (that stays greenpack/msgp).

// JSON serializes the header to JSON for trace/debug output.
func (h *RequestHeader) JSON() []byte {
	jsonData, err := json.Marshal(h)
	panicOn(err)
	return jsonData
}

// Pretty shows the header in pretty-printed JSON, for vv() tracing.
func (h *RequestHeader) Pretty() string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, h.JSON(), "", "    "); err != nil {
		return fmt.Sprintf("%#v", h)
	}
	return pretty.String()
}

// RequestHeaderFromBytes reverses JSON, using goccy/go-json for the
// decode side (matching the teacher's Unbytes/HDRFromBytes split
// between stdlib-encode, goccy-decode).
func RequestHeaderFromBytes(jsonData []byte) (*RequestHeader, error) {
	var h RequestHeader
	if err := gjson.Unmarshal(jsonData, &h); err != nil {
		return nil, newErr(Fail, "RequestHeaderFromBytes", "%v", err)
	}
	return &h, nil
}

// JSON serializes the response header to JSON for trace/debug output.
func (h *ResponseHeader) JSON() []byte {
	jsonData, err := json.Marshal(h)
	panicOn(err)
	return jsonData
}

// Pretty shows the response header in pretty-printed JSON, for vv()
// tracing.
func (h *ResponseHeader) Pretty() string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, h.JSON(), "", "    "); err != nil {
		return fmt.Sprintf("%#v", h)
	}
	return pretty.String()
}

// JSON serializes an Operation's trace-relevant fields to JSON. The
// Callback/Arg fields are intentionally omitted (closures and opaque
// user data aren't meaningfully JSON-able), matching vv()'s use of
// this for tag/kind/size diagnostics rather than full object dumps.
func (op *Operation) JSON() []byte {
	view := struct {
		Kind       string `json:"kind"`
		Tag        uint32 `json:"tag"`
		Completed  bool   `json:"completed"`
		ActualSize int    `json:"actual_size"`
		Err        string `json:"err,omitempty"`
	}{
		Kind:       op.Kind.String(),
		Tag:        op.Tag,
		Completed:  op.Completed,
		ActualSize: op.ActualSize,
	}
	if op.Err != nil {
		view.Err = op.Err.Error()
	}
	jsonData, err := json.Marshal(view)
	panicOn(err)
	return jsonData
}

// Pretty shows an Operation's trace view in pretty-printed JSON.
func (op *Operation) Pretty() string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, op.JSON(), "", "    "); err != nil {
		return fmt.Sprintf("%#v", op)
	}
	return pretty.String()
}
