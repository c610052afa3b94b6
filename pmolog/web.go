package pmolog

import (
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup configure le formatter et le niveau de logrus. Un niveau inconnu
// retombe sur info.
func Setup(level string) {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})

	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		log.Warnf("❌ unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// ---------- HTML ----------

var indexHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>🚀 Real-Time Logs</title>
  <style>
    body { background:#0d1117; color:#e6edf3; font-family: -apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif; margin:0; padding:20px; }
    h1 { color:#58a6ff; border-bottom:1px solid #30363d; padding-bottom:10px; }
    #status { margin-bottom:10px; color:#7ee787; }
    #logs { height:70vh; overflow-y:auto; background:#161b22; border:1px solid #30363d; border-radius:8px; padding:15px; }
    .log { margin:6px 0; padding:6px 10px; border-left:4px solid; border-radius:6px; white-space:pre-wrap; }
    .log.error   { border-color:#f85149; background:rgba(248,81,73,0.1); }
    .log.warning { border-color:#d29922; background:rgba(210,153,34,0.1); }
    .log.info    { border-color:#58a6ff; background:rgba(56,139,253,0.1); }
    .log.debug   { border-color:#8957e5; background:rgba(137,87,229,0.1); }
    .time { color:#7d8590; font-size:12px; margin-right:10px; }
  </style>
</head>
<body>
  <h1>📝 Logs en temps réel</h1>
  <div id="status"></div>
  <div id="logs"></div>
  <script>
    const logs=document.getElementById('logs');
    const status=document.getElementById('status');
    const es=new EventSource('/log-sse');
    const maxLogs=500;

    es.addEventListener('message', e=>{
      const d=JSON.parse(e.data);
      const line=document.createElement('div');
      line.className='log '+d.level;

      const t=document.createElement('span');
      t.className='time';
      t.textContent=new Date(d.time).toLocaleTimeString();
      line.appendChild(t);
      line.appendChild(document.createTextNode(d.content));

      logs.appendChild(line);
      if(logs.children.length>maxLogs) logs.removeChild(logs.firstChild);
      logs.scrollTop=logs.scrollHeight;
    });

    es.addEventListener('status', e=>{
      const d=JSON.parse(e.data);
      status.textContent='▶ '+d.status+(d.title?' · '+d.title:'')+' @ '+d.renderer;
    });

    es.onerror=e=>console.error("SSE error",e);
  </script>
</body>
</html>`

// ---------- Handlers ----------

func indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

// LoggerWeb branche le hook SSE sur logrus et expose /log et /log-sse.
func LoggerWeb(mux *http.ServeMux, broker *Broker) {
	if broker == nil {
		broker = Default
	}
	log.AddHook(SSELogHook{Broker: broker})
	mux.HandleFunc("/log", indexHandler)
	mux.Handle("/log-sse", broker)
	log.Info("✅ Web logger connected")
}
