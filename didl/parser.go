package didl

import (
	"encoding/xml"
	"fmt"
	"strings"
)

func Parse(metadata string) (*DIDLLite, error) {
	var didl DIDLLite
	if err := xml.Unmarshal([]byte(metadata), &didl); err != nil {
		return nil, fmt.Errorf("failed to parse DIDL-Lite: %w", err)
	}
	return &didl, nil
}

// ParseItem retourne le premier item d'un document DIDL-Lite, tel que
// renvoyé dans TrackMetaData ou CurrentURIMetaData. Les renderers
// retournent souvent une chaîne vide ou NOT_IMPLEMENTED.
func ParseItem(metadata string) (*Item, error) {
	metadata = strings.TrimSpace(metadata)
	if metadata == "" || metadata == "NOT_IMPLEMENTED" {
		return nil, fmt.Errorf("no DIDL-Lite metadata")
	}

	d, err := Parse(metadata)
	if err != nil {
		return nil, err
	}

	item, ok := First(d.AllItems())
	if !ok {
		return nil, fmt.Errorf("DIDL-Lite document has no item")
	}
	return item, nil
}
