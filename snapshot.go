package odm

import (
	"encoding/json"

	"github.com/goforj/odm/docstore"
)

// Snapshot is the JSON-shaped attribute mapping of a stored document,
// including "_id". It is what the cache holds.
type Snapshot map[string]any

// ID returns the snapshot's identity.
func (s Snapshot) ID() string {
	id, _ := s[docstore.IDField].(string)
	return id
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot(docstore.Document(s).Clone())
}

func encodeSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

func decodeSnapshot(body []byte) (Snapshot, error) {
	doc, err := docstore.Decode(body)
	if err != nil {
		return nil, err
	}
	return Snapshot(doc), nil
}
