package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/freetarget/target-core/internal/acquire"
	"github.com/freetarget/target-core/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"timer": func(shot *acquire.Shot, d acquire.Direction) string {
		if !shot.Trip.Has(d) || shot.Timers[d] == acquire.NotTripped {
			return "-"
		}
		return fmt.Sprintf("%d", shot.Timers[d])
	},
	"directions": func() [acquire.NumDirections]acquire.Direction {
		return acquire.Directions
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>FreeTarget</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>FreeTarget</h1>

<h2>Target</h2>
<table>
<tr><th>Power</th><td id="enabled" class="{{if .Enabled}}on{{else}}off{{end}}">{{if .Enabled}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>State</th><td id="state">{{if .State}}{{.State}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Target type</th><td>{{.TargetType}}</td></tr>
<tr><th>LED</th><td>{{.LEDLevel}}%</td></tr>
</table>

<h2>Last Shot</h2>
{{with .LastShot}}<table>
<tr><th>Shot</th><td id="last-seq">#{{.Seq}} {{.Outcome}}</td></tr>
<tr><th>Time</th><td>{{.Timestamp.UTC.Format "2006-01-02T15:04:05.000Z"}}</td></tr>
<tr><th>Trip</th><td>{{.Trip}}</td></tr>
{{$shot := .}}{{range directions}}<tr><th>{{.}}</th><td>{{timer $shot .}}</td></tr>
{{end}}</table>{{else}}<p id="last-seq">No shots yet</p>{{end}}

<h2>Counts</h2>
<table>
<tr><th>Shots</th><td>{{.Shots}}</td></tr>
<tr><th>Complete</th><td>{{.Acquire.Completed}}</td></tr>
<tr><th>Timed out</th><td>{{.Acquire.TimedOut}}</td></tr>
<tr><th>Forced</th><td>{{.Acquire.Forced}}</td></tr>
<tr><th>Spurious trips</th><td>{{.Acquire.Spurious}}</td></tr>
<tr><th>Face strikes</th><td>{{.Acquire.FaceStrikes}}</td></tr>
<tr><th>Ambiguous gestures</th><td>{{.MFS.Ambiguous}}</td></tr>
</table>

<h2>Switches</h2>
<table>
<tr><th>Table</th><td>{{.Config.MFSTable}}</td></tr>
<tr><th>SW1</th><td id="sw1">{{if .SW1Closed}}CLOSED{{else}}OPEN{{end}}</td></tr>
<tr><th>SW2</th><td id="sw2">{{if .SW2Closed}}CLOSED{{else}}OPEN{{end}}</td></tr>
{{with .LastGesture}}<tr><th>Last gesture</th><td id="last-gesture">{{.Gesture}} &rarr; {{.Action}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Timeout</th><td>{{.Config.TimeoutUs}}us</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/shot.json">last shot</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
