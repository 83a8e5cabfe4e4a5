package rpc

import "encoding/json"

func jsonString(raw json.RawMessage) string {
	var s string
	if raw != nil {
		json.Unmarshal(raw, &s)
	}
	return s
}

func jsonInt(raw json.RawMessage) int {
	var i int
	if raw != nil {
		json.Unmarshal(raw, &i)
	}
	return i
}
