package core

import "pkt.systems/replwin/schema"

// Clipboard stores copied content keyed by format.
type Clipboard interface {
	SetData(data schema.DataObject) error
	GetData() (schema.DataObject, error)
}
