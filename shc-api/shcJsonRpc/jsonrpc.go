package shcJsonRpc

import (
	"fmt"

	"github.com/zabeloliver/smarthome-bridge/shc-api/shcStructs"
)

const Version = "2.0"

const (
	MethodSubscribe   = "RE/subscribe"
	MethodUnsubscribe = "RE/unsubscribe"
	MethodLongPoll    = "RE/longPoll"
)

type JsonRpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e JsonRpcError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

type JsonRPC struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type JsonRPCResult struct {
	Jsonrpc string       `json:"jsonrpc"`
	Result  string       `json:"result"`
	Error   JsonRpcError `json:"error,omitempty"`
}

type PollResult struct {
	Jsonrpc string                   `json:"jsonrpc"`
	Result  []shcStructs.DeviceEvent `json:"result"`
	Error   JsonRpcError             `json:"error,omitempty"`
}

func NewRequest(method string, params ...any) JsonRPC {
	return JsonRPC{Jsonrpc: Version, Method: method, Params: params}
}
