package pmoserver

import (
	"fmt"
	"html"
	"net/http"
	"sort"
	"strconv"

	"github.com/beevik/etree"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/netutils"
)

func (s *Server) ServeDebugIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>PMOControl Debug</title>
  <style>
    body { font-family: sans-serif; margin: 2em; }
    h1 { border-bottom: 1px solid #ccc; }
    td, th { padding: 0.2em 1em; text-align: left; }
    a { color: #007bff; text-decoration: none; }
    a:hover { text-decoration: underline; }
  </style>
</head>
<body>
  <h1>%s</h1>
  <h2>address: %s</h2>
`,
		html.EscapeString(s.Name()),
		html.EscapeString(s.BaseURL()))

	s.mu.RLock()
	player := s.player
	s.mu.RUnlock()
	if player != nil {
		info := player.Info()
		media := "-"
		if info.Media != nil {
			media = fmt.Sprint(info.Media)
		}
		fmt.Fprintf(w, "  <p>▶ %s · %s @ %s</p>\n",
			info.Status,
			html.EscapeString(media),
			html.EscapeString(info.Renderer.Name()))
	}

	if s.registry != nil {
		fmt.Fprint(w, "  <table>\n    <tr><th>#</th><th>Renderer</th><th>UDN</th><th>Pause</th></tr>\n")
		for i, r := range s.registry.List() {
			fmt.Fprintf(w, "    <tr><td>%d</td><td>%s</td><td>%s</td><td>%t</td></tr>\n",
				i,
				html.EscapeString(r.Name()),
				html.EscapeString(r.ID()),
				r.CanPause())
		}
		fmt.Fprint(w, "  </table>\n")
	}

	ifaces := netutils.ListAllIPs()
	names := make([]string, 0, len(ifaces))
	for name := range ifaces {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprint(w, "  <ul>\n")
	for _, name := range names {
		fmt.Fprintf(w, "    <li>%s: %s</li>\n", html.EscapeString(name), html.EscapeString(fmt.Sprint(ifaces[name])))
	}
	fmt.Fprint(w, `  </ul>
  <p><a href="/debug/renderers.xml">renderers.xml</a> · <a href="/log">logs</a> · <a href="/covers/stats">covers</a></p>
</body>
</html>
`)
}

// renderersXML décrit les renderers connus pour le debug.
func (s *Server) renderersXML() *etree.Element {
	root := etree.NewElement("renderers")
	if s.registry == nil {
		return root
	}
	for i, r := range s.registry.List() {
		el := root.CreateElement("renderer")
		el.CreateAttr("index", strconv.Itoa(i))
		el.CreateAttr("id", r.ID())
		el.CreateElement("name").SetText(r.Name())
		el.CreateElement("canPause").SetText(strconv.FormatBool(r.CanPause()))
		if dev := r.Device(); dev != nil {
			el.CreateElement("location").SetText(dev.Location())
			el.CreateElement("manufacturer").SetText(dev.Manufacturer())
			el.CreateElement("model").SetText(dev.ModelName())
			el.CreateElement("volume").SetText(strconv.FormatBool(r.RenderingControl() != nil))
		}
	}
	return root
}
