// Package frontend serves spec.md §6's HTTP surface — the test page,
// per-format landing pages and the WebSocket upgrade handshake — on top
// of a gateway.WSGate, as the net/http.Handler returned by Engine.
package frontend

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	ginsdk "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/un9021/uniset2/gateway"
	"github.com/un9021/uniset2/logger"
	"github.com/un9021/uniset2/metrics"
	"github.com/un9021/uniset2/sm"
	"github.com/un9021/uniset2/wire"
)

// Config collects the handshake-time knobs spec.md §6 names.
type Config struct {
	Prefix    string // e.g. "ws", yielding /ws/...
	CORSAllow string
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "ws"
	}
	if c.CORSAllow == "" {
		c.CORSAllow = "*"
	}
	return c
}

// Handler builds the gin engine implementing spec.md §6's HTTP surface
// for one WSGate.
type Handler struct {
	cfg     Config
	gate    *gateway.WSGate
	log     logger.Logger
	up      websocket.Upgrader
	metrics *metrics.Registry
}

// New wires a handler for gate. Per-session maxSend/queueK come from the
// gate itself (see gateway.NewWSGate).
func New(cfg Config, gate *gateway.WSGate, log logger.Logger) *Handler {
	cfg = cfg.withDefaults()
	return &Handler{
		cfg:  cfg,
		gate: gate,
		log:  log,
		up:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// WithMetrics mounts m's handler at /metrics on the next call to Engine.
func (h *Handler) WithMetrics(m *metrics.Registry) *Handler {
	h.metrics = m
	return h
}

// Engine returns the complete http.Handler: it mounts the routes under
// /<Config.Prefix>/ itself, plus /metrics when WithMetrics was called.
func (h *Handler) Engine() http.Handler {
	r := ginsdk.New()
	r.Use(h.cors())

	base := "/" + strings.Trim(h.cfg.Prefix, "/")
	r.GET(base+"/", h.root)
	r.GET(base+"/:format", h.landing)
	r.GET(base+"/:format/:sensors", h.landing)
	if h.metrics != nil {
		r.GET("/metrics", func(c *ginsdk.Context) {
			h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
		})
	}
	r.NoRoute(func(c *ginsdk.Context) {
		if c.Request.Method != http.MethodGet {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusNotFound)
	})
	return r
}

// cors stamps Access-Control-Allow-Origin on every response per spec.md
// §6's "every response carries" requirement, and rejects non-GET methods
// with 400 up front.
func (h *Handler) cors() ginsdk.HandlerFunc {
	return func(c *ginsdk.Context) {
		c.Header("Access-Control-Allow-Origin", h.cfg.CORSAllow)
		if c.Request.Method != http.MethodGet {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		c.Next()
	}
}

// root either performs the WebSocket upgrade (when the request carries
// an Upgrade: websocket header) or serves the HTML test page listing
// known demo endpoints.
func (h *Handler) root(c *ginsdk.Context) {
	if isUpgrade(c.Request) {
		h.upgrade(c, wire.ParseFormat(c.Query("format")), parseSensorsCSV(c.Query("s")))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", testPageHTML(h.cfg.Prefix))
}

// landing serves a per-format page (optionally with preselected
// sensors) that initiates the WebSocket from the browser; an unknown
// format is a 400 per spec.md §6.
func (h *Handler) landing(c *ginsdk.Context) {
	format := wire.ParseFormat(c.Param("format"))
	if format == wire.FormatUnknown {
		c.Status(http.StatusBadRequest)
		return
	}

	var sensors []sm.SensorId
	if csv := c.Param("sensors"); csv != "" {
		sensors = parseSensorsCSV(csv)
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", landingPageHTML(h.cfg.Prefix, format, sensors))
}

// upgrade performs the actual protocol switch and registers the new
// stream session with the gate, returning 503 when at capacity and 400
// for an unrecognized format or an absent sensor list (spec.md §4.6:
// "Absent list → HTTP 400").
func (h *Handler) upgrade(c *ginsdk.Context, format wire.Format, sensors []sm.SensorId) {
	if format == wire.FormatUnknown {
		c.Status(http.StatusBadRequest)
		return
	}
	if len(sensors) == 0 {
		c.Status(http.StatusBadRequest)
		return
	}
	if h.gate.AtCapacity() {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	conn, err := h.up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	stream, ok := h.gate.Accept(conn, format, sensors)
	if !ok {
		_ = conn.Close()
		return
	}

	go stream.ReadPump()
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func parseSensorsCSV(csv string) []sm.SensorId {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]sm.SensorId, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, sm.SensorId(n))
	}
	return out
}

var testPageTmpl = template.Must(template.New("test").Parse(`<!doctype html>
<html><head><title>uniset2 sensor gateway</title></head>
<body>
<h1>Sensor Event Gateway</h1>
<ul>
<li><a href="{{.Prefix}}/json">json</a></li>
<li><a href="{{.Prefix}}/txt">txt</a></li>
<li><a href="{{.Prefix}}/raw">raw</a></li>
</ul>
</body></html>
`))

func testPageHTML(prefix string) []byte {
	var buf strings.Builder
	_ = testPageTmpl.Execute(&buf, struct{ Prefix string }{Prefix: "/" + strings.Trim(prefix, "/")})
	return []byte(buf.String())
}

var landingTmpl = template.Must(template.New("landing").Parse(`<!doctype html>
<html><head><title>uniset2 {{.Format}}</title></head>
<body>
<script>
var ws = new WebSocket("ws://" + location.host + "/{{.Prefix}}/?format={{.Format}}{{if .Sensors}}&s={{.Sensors}}{{end}}");
ws.onmessage = function(ev) { console.log(ev.data); };
</script>
<p>connecting with format={{.Format}}{{if .Sensors}}, sensors={{.Sensors}}{{end}}</p>
</body></html>
`))

func landingPageHTML(prefix string, format wire.Format, sensors []sm.SensorId) []byte {
	csv := make([]string, 0, len(sensors))
	for _, s := range sensors {
		csv = append(csv, fmt.Sprintf("%d", s))
	}
	var buf strings.Builder
	_ = landingTmpl.Execute(&buf, struct {
		Prefix  string
		Format  string
		Sensors string
	}{
		Prefix:  strings.Trim(prefix, "/"),
		Format:  format.String(),
		Sensors: strings.Join(csv, ","),
	})
	return []byte(buf.String())
}
