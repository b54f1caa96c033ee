// Copyright (c) 2025 Northbound System
package widget

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/northbound/ragcore/internal/domain"
)

// scriptTemplate is the CDN-served embed script described in §6. The only
// bit-exact behavioral requirement carried over from the source system is
// the greeting rotation: each widget open picks the next welcome message
// from the configured array, remembering the last index shown in
// localStorage so the same greeting never repeats back-to-back.
const scriptTemplate = `(function() {
  var EMBED_ID = {{.EmbedID}};
  var API_KEY = {{.APIKey}};
  var GREETINGS = {{.Greetings}};
  var SHOW_SOURCES = {{.ShowSources}};
  var PLACEHOLDER = {{.Placeholder}};
  var STORAGE_KEY = "ragcore_widget_greeting_" + EMBED_ID;

  function nextGreeting() {
    if (!GREETINGS.length) return "";
    var last = parseInt(window.localStorage.getItem(STORAGE_KEY) || "-1", 10);
    var next = (last + 1) % GREETINGS.length;
    if (GREETINGS.length > 1 && next === last) {
      next = (next + 1) % GREETINGS.length;
    }
    window.localStorage.setItem(STORAGE_KEY, String(next));
    return GREETINGS[next];
  }

  function createWidget() {
    var root = document.createElement("div");
    root.className = "ragcore-widget";

    var bubbleLog = document.createElement("div");
    bubbleLog.className = "ragcore-widget-log";
    root.appendChild(bubbleLog);

    function addBubble(role, text, sources) {
      var bubble = document.createElement("div");
      bubble.className = "ragcore-widget-bubble ragcore-widget-bubble-" + role;
      bubble.textContent = text;
      if (SHOW_SOURCES && sources && sources.length) {
        var cites = document.createElement("div");
        cites.className = "ragcore-widget-sources";
        cites.textContent = sources.map(function(s, i) { return "[" + (i + 1) + "]"; }).join(" ");
        bubble.appendChild(cites);
      }
      bubbleLog.appendChild(bubble);
      return bubble;
    }

    var typingIndicator = document.createElement("div");
    typingIndicator.className = "ragcore-widget-typing";
    typingIndicator.style.display = "none";
    typingIndicator.textContent = "...";
    root.appendChild(typingIndicator);

    var input = document.createElement("input");
    input.placeholder = PLACEHOLDER;
    root.appendChild(input);

    document.body.appendChild(root);
    addBubble("assistant", nextGreeting());

    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + location.host + "/widget/ws?key=" + encodeURIComponent(API_KEY));
    var pending = "";

    ws.onopen = function() {
      setInterval(function() {
        ws.send(JSON.stringify({type: "ping"}));
      }, 30000);
    };

    ws.onmessage = function(evt) {
      var frame = JSON.parse(evt.data);
      if (frame.type === "chat_chunk") {
        typingIndicator.style.display = "block";
        pending += frame.data.text;
      } else if (frame.type === "chat_complete") {
        typingIndicator.style.display = "none";
        addBubble("assistant", pending || frame.data.answer, frame.data.sources);
        pending = "";
      } else if (frame.type === "error") {
        typingIndicator.style.display = "none";
        addBubble("assistant", frame.data.message);
      }
    };

    input.addEventListener("keydown", function(evt) {
      if (evt.key === "Enter" && input.value.trim()) {
        addBubble("user", input.value);
        ws.send(JSON.stringify({type: "chat_message", data: {content: input.value}}));
        input.value = "";
      }
    });
  }

  if (document.readyState === "loading") {
    document.addEventListener("DOMContentLoaded", createWidget);
  } else {
    createWidget();
  }
})();
`

var scriptTmpl = template.Must(template.New("widget.js").Parse(scriptTemplate))

// ScriptHandler serves the widget JavaScript for one EmbedCode, to be
// mounted at a CDN-like path parameterized by embed id and API key.
type ScriptHandler struct {
	lookup func(embedID string) (*domain.EmbedCode, error)
}

// NewScriptHandler wraps a lookup function (typically
// database.EmbedCodeStore.ByID, kept narrow here to avoid an import cycle
// with the http-facing server package).
func NewScriptHandler(lookup func(embedID string) (*domain.EmbedCode, error)) *ScriptHandler {
	return &ScriptHandler{lookup: lookup}
}

func (h *ScriptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	embedID := strings.TrimPrefix(r.URL.Path, "/widget/")
	embedID = strings.TrimSuffix(embedID, ".js")
	if embedID == "" {
		http.Error(w, "missing embed id", http.StatusBadRequest)
		return
	}

	embed, err := h.lookup(embedID)
	if err != nil || embed == nil || !embed.Active {
		http.Error(w, "widget not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	data := struct {
		EmbedID, APIKey, Greetings, ShowSources, Placeholder template.JS
	}{
		EmbedID:     template.JS(fmt.Sprintf("%q", embed.ID)),
		APIKey:      template.JS(fmt.Sprintf("%q", embed.APIKey)),
		Greetings:   template.JS(jsonStringArray(embed.Config.WelcomeMessages)),
		ShowSources: template.JS(fmt.Sprintf("%v", embed.Config.ShowSources)),
		Placeholder: template.JS(fmt.Sprintf("%q", embed.Config.Placeholder)),
	}
	_ = scriptTmpl.Execute(w, data)
}

func jsonStringArray(xs []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range xs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%q", x))
	}
	b.WriteByte(']')
	return b.String()
}
