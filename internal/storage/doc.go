package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// container is the in-memory form of one (campaign, kind) document: entity id
// to attribute document. It is always read and written as a whole.
type container map[string]Attrs

func encodeContainer(c container) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

func decodeContainer(data []byte) (container, error) {
	if len(data) == 0 {
		return container{}, nil
	}
	var c container
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.WithStack(err)
	}
	if c == nil {
		c = container{}
	}
	return c, nil
}

// withID returns a copy of attrs annotated with the entity id, as returned by
// LoadAll.
func withID(id string, attrs Attrs) Attrs {
	out := make(Attrs, len(attrs)+1)
	out[IDField] = id
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
