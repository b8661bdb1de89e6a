// internal/protocol/envelope.go
package protocol

import "encoding/json"

// Client frames are flat JSON objects carrying a "type" discriminator
// beside the payload fields, so one unmarshal yields both. Server events
// are typed structs marshaled at the send site.

// Decode unmarshals one raw client frame into its typed message.
func Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
