package didl

import (
	"fmt"
	"strings"
)

func (d *DIDLLite) ToMarkdown() string {
	var buf strings.Builder
	buf.WriteString("# DIDL-Lite Document\n\n")

	for c := range d.AllContainers() {
		buf.WriteString(fmt.Sprintf("- **Container**: %s (`%s`, %d items)\n", c.Title, c.ID, len(c.Items)))
	}
	if len(d.Containers) > 0 {
		buf.WriteString("\n")
	}

	for item := range d.AllItems() {
		item.markdown(&buf)
	}

	return buf.String()
}

func (i *Item) markdown(buf *strings.Builder) {
	buf.WriteString(fmt.Sprintf("- **Item** `%s` (%s)\n", i.ID, i.Class))

	for key, value := range i.GetMetadata() {
		if key == "albumArtURI" {
			buf.WriteString(fmt.Sprintf("  - %s: ![Cover](%s)\n", key, value))
			continue
		}
		buf.WriteString(fmt.Sprintf("  - %s: %s\n", key, value))
	}

	for _, res := range i.Ress {
		buf.WriteString(fmt.Sprintf("  - res: %s\n", res.URL))
		buf.WriteString(fmt.Sprintf("    - Protocol: `%s`\n", res.ProtocolInfo))
		if res.Duration != "" {
			buf.WriteString(fmt.Sprintf("    - Duration: `%s`\n", res.Duration))
		}
	}

	buf.WriteString("\n")
}
