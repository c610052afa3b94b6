package pmolog

import (
	"strings"

	"github.com/beevik/etree"
)

// PrettyPrintXML réindente un document XML pour les logs de debug.
// En cas d'erreur de parsing, le texte brut est rendu tel quel.
func PrettyPrintXML(raw string) string {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil || doc.Root() == nil {
		return raw
	}
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return raw
	}
	return strings.TrimRight(out, "\n")
}
