package soap

import (
	"bytes"
	"fmt"
	"strings"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/didl"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmolog"
)

// ToMarkdown convertit l'action et ses arguments en Markdown lisible
func (ar *ActionRequest) ToMarkdown() string {
	var buf bytes.Buffer

	// Titre de l'action
	buf.WriteString(fmt.Sprintf("➡️ SOAP Action: %s\n\n", ar.Name))
	writeArguments(&buf, ar.Args)
	return buf.String()
}

// ResponseToMarkdown rend une réponse décodée par ParseActionResponse.
func ResponseToMarkdown(action string, values map[string]string) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("⬅️ SOAP Response: %s\n\n", action))

	args := make([]Argument, 0, len(values))
	for k, v := range values {
		args = append(args, Argument{Name: k, Value: v})
	}
	writeArguments(&buf, args)
	return buf.String()
}

func writeArguments(buf *bytes.Buffer, args []Argument) {
	for _, a := range args {
		buf.WriteString(fmt.Sprintf("- **%s**: ", a.Name))

		content := argumentContent(a.Value)

		// Si contenu long ou multi-lignes
		if strings.Contains(content, "\n") || len(content) > 60 {
			// Résumé : première ligne ou URL tronquée
			summary := firstLineOrTruncate(content, 60)
			buf.WriteString(fmt.Sprintf("`%s`\n", summary))
			buf.WriteString("<details>\n\n")

			// Conserver Markdown complet, sans indentation
			buf.WriteString(content)
			if !strings.HasSuffix(content, "\n") {
				buf.WriteString("\n")
			}
			buf.WriteString("</details>\n\n")
		} else if isURL(content) {
			buf.WriteString(fmt.Sprintf("[%s](%s)\n", content, content))
		} else {
			buf.WriteString(fmt.Sprintf("`%s`\n", content))
		}
	}
}

// Les métadonnées DIDL-Lite sont rendues en Markdown, les autres XML
// réindentés.
func argumentContent(value string) string {
	if !strings.HasPrefix(strings.TrimSpace(value), "<") {
		return value
	}
	if d, err := didl.Parse(value); err == nil {
		return d.ToMarkdown()
	}
	return pmolog.PrettyPrintXML(value)
}

// Tronque la première ligne ou l'URL si trop longue
func firstLineOrTruncate(s string, max int) string {
	lines := strings.SplitN(s, "\n", 2)
	first := lines[0]
	if len(first) > max {
		return first[:max] + "…"
	}

	first = strings.TrimLeft(first, "# ")
	return first
}

// Vérifie si une string ressemble à une URL
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
