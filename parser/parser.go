// Package parser turns arbitrary failure values into typed payment
// requirements. Recognition is structural: a 402 status code plus a payload
// carrying at least amount and recipient, wherever those happen to be
// nested, because the failure may originate from several independent
// transport layers.
package parser

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/vitwit/x402-client/types"
)

var validate = validator.New()

// maxDepth bounds the structural walk over nested failure objects.
const maxDepth = 6

// HTTPError is satisfied by transport errors that retain their response.
// Detection is by shape, not type identity.
type HTTPError interface {
	StatusCode() int
	ResponseBody() []byte
}

// payloadNode is the loose shape of a payment-description payload.
type payloadNode struct {
	Amount      string `mapstructure:"amount"`
	Recipient   string `mapstructure:"recipient"`
	Description string `mapstructure:"description"`
	Message     string `mapstructure:"message"`
	Currency    string `mapstructure:"currency"`
	Network     string `mapstructure:"network"`
}

// Parse inspects v and returns the payment requirement it describes, or nil
// if v is not a payment error. It is total: malformed payloads (missing
// amount or recipient, unparseable amounts) are non-matches, never errors,
// so it is safe to call speculatively on every failure.
func Parse(v any) *types.PaymentRequirement {
	root := toMap(v)
	if root == nil {
		return nil
	}
	if !hasStatus402(root, 0) {
		return nil
	}
	payload := findPayload(root, 0)
	if payload == nil {
		return nil
	}

	var node payloadNode
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &node,
	})
	if err != nil || dec.Decode(payload) != nil {
		return nil
	}

	req := &types.PaymentRequirement{
		Amount:      node.Amount,
		Currency:    node.Currency,
		Recipient:   node.Recipient,
		Network:     types.Network(node.Network),
		Description: node.Description,
	}
	if req.Currency == "" {
		req.Currency = types.DefaultCurrency
	}
	if req.Network == "" {
		req.Network = types.DefaultNetwork
	}
	if req.Description == "" {
		req.Description = node.Message
	}

	if !common.IsHexAddress(req.Recipient) {
		return nil
	}
	if validate.Struct(req) != nil {
		return nil
	}
	if err := req.Validate(); err != nil {
		return nil
	}
	return req
}

// toMap normalizes an arbitrary failure value into a generic JSON object.
func toMap(v any) map[string]any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return val
	case json.RawMessage:
		return unmarshalObject([]byte(val))
	case []byte:
		return unmarshalObject(val)
	case string:
		return unmarshalObject([]byte(val))
	}

	if he, ok := v.(HTTPError); ok {
		m := map[string]any{"status": he.StatusCode()}
		if body := unmarshalObject(he.ResponseBody()); body != nil {
			m["data"] = body
		}
		return m
	}

	// Structs (and errors with exported response fields) round-trip
	// through JSON into a generic object.
	raw, err := json.Marshal(v)
	if err == nil {
		if m := unmarshalObject(raw); len(m) > 0 {
			return m
		}
	}

	// Last resort for opaque errors: the message itself may be the
	// serialized 402 response.
	if err, ok := v.(error); ok {
		return unmarshalObject([]byte(err.Error()))
	}
	return nil
}

func unmarshalObject(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(data, &m) != nil {
		return nil
	}
	return m
}

// hasStatus402 reports whether any node in the object tree carries an HTTP
// status of 402 under a conventional key.
func hasStatus402(node map[string]any, depth int) bool {
	if depth > maxDepth {
		return false
	}
	for _, key := range []string{"status", "statusCode", "code"} {
		if is402(node[key]) {
			return true
		}
	}
	for _, v := range node {
		if child := asObject(v); child != nil && hasStatus402(child, depth+1) {
			return true
		}
	}
	return false
}

func is402(v any) bool {
	switch val := v.(type) {
	case int:
		return val == 402
	case int64:
		return val == 402
	case float64:
		return val == 402
	case json.Number:
		return val.String() == "402"
	case string:
		return val == "402"
	}
	return false
}

// findPayload returns the first node carrying both amount and recipient.
func findPayload(node map[string]any, depth int) map[string]any {
	if depth > maxDepth {
		return nil
	}
	if node["amount"] != nil && node["recipient"] != nil {
		return node
	}
	// Conventional wrappers first, then anything else, so the payment
	// payload wins over unrelated siblings.
	for _, key := range []string{"data", "response", "body", "paymentRequired", "payload", "error"} {
		if child := asObject(node[key]); child != nil {
			if found := findPayload(child, depth+1); found != nil {
				return found
			}
		}
	}
	for _, v := range node {
		if child := asObject(v); child != nil {
			if found := findPayload(child, depth+1); found != nil {
				return found
			}
		}
	}
	return nil
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
