// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package json

import (
	"net/http"
	"strings"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

// NewCodec returns a json2 codec that uppercases the first character of the
// called method, so "service.methodName" resolves to the exported Go method.
func NewCodec() rpc.Codec {
	return codec{json2.NewCodec()}
}

type codec struct {
	*json2.Codec
}

func (c codec) NewRequest(r *http.Request) rpc.CodecRequest {
	return &request{c.Codec.NewRequest(r)}
}

type request struct {
	rpc.CodecRequest
}

func (r *request) Method() (string, error) {
	method, err := r.CodecRequest.Method()
	methodSections := strings.SplitN(method, ".", 2)
	if len(methodSections) != 2 || err != nil {
		return method, err
	}
	class, function := methodSections[0], methodSections[1]
	return class + "." + strings.ToUpper(function[:1]) + function[1:], nil
}
