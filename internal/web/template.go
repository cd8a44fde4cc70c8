package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/silen72/night-light/internal/logic"
	"github.com/silen72/night-light/internal/status"
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
	"modeClass": func(m logic.Mode) string {
		switch {
		case m == logic.ModeOff:
			return "off"
		case m.IsNightLight():
			return "night"
		default:
			return "on"
		}
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"secs": func(d time.Duration) int64 { return int64(d / time.Second) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Night Light</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.night { color: #b8860b; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>{{if .Config.Hostname}}{{.Config.Hostname}}{{else}}Night Light{{end}}{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Lamp</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{modeClass .Lamp.Mode}}">{{.Lamp.Mode}}</td></tr>
<tr><th>Brightness</th><td id="brightness">{{.Lamp.CurrentBrightness}} / {{.Lamp.TargetBrightness}}</td></tr>
<tr><th>Ambient light</th><td>{{.Lamp.LDR}}{{if not .Ready}} (warming up){{end}}</td></tr>
<tr><th>Presence</th><td>{{yesno .Lamp.Presence.Detected}} (qualified: {{yesno .Lamp.Presence.Qualified}})</td></tr>
<tr><th>Moving target</th><td>{{if .Lamp.Presence.Moving.Detected}}{{.Lamp.Presence.Moving.DistanceCm}}cm, energy {{.Lamp.Presence.Moving.Energy}}{{else}}none{{end}}</td></tr>
<tr><th>Stationary target</th><td>{{if .Lamp.Presence.Stationary.Detected}}{{.Lamp.Presence.Stationary.DistanceCm}}cm, energy {{.Lamp.Presence.Stationary.Energy}}{{else}}none{{end}}</td></tr>
{{if eq .Lamp.Mode "NIGHT_LIGHT_ON"}}<tr><th>No presence for</th><td>{{secs .Lamp.NoPresenceDuration}}s of {{secs .Lamp.NightLightOnDuration}}s</td></tr>{{end}}
</table>

<h2>Settings</h2>
<form method="post" action="/api/settings">
<table>
{{range .Settings}}<tr><th>{{.Name}}</th><td><input name="{{.Key}}" type="number" min="{{.Min}}" max="{{.Max}}" value="{{.Value}}"></td></tr>
{{end}}</table>
<input type="hidden" name="save" value="true">
<button type="submit">Save</button>
</form>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Mode}} {{.Network.Status}}{{if .Network.SSID}} ({{.Network.SSID}}){{end}}</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Mode changes</th><td>{{.Lamp.Counts.ModeChanges}}</td></tr>
<tr><th>Ignored gestures</th><td>{{.Lamp.Counts.IgnoredGestures}}</td></tr>
<tr><th>Confirmations</th><td>{{.Lamp.Counts.Confirmations}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Radar</th><td>{{.Config.RadarDevice}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Config.EventsTopic}}";
  var dot = document.getElementById("live-dot");
  var modeEl = document.getElementById("mode");
  var brightEl = document.getElementById("brightness");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });
  client.on("reconnect", function() { setDot("pending", "reconnecting"); });
  client.on("offline", function() { setDot("err", "offline"); });
  client.on("error", function() { setDot("err", "error"); });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.lamp) {
        modeEl.textContent = msg.lamp.to;
        modeEl.className = msg.lamp.to === "OFF" ? "off" : msg.lamp.to.indexOf("NIGHT_LIGHT") >= 0 ? "night" : "on";
        brightEl.textContent = msg.lamp.current + " / " + msg.lamp.target;
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

type settingRow struct {
	Key      string
	Name     string
	Min, Max int
	Value    int
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	settings := snap.Lamp.Settings
	rows := make([]settingRow, 0, len(logic.AllSettings()))
	for _, s := range logic.AllSettings() {
		lo, hi := s.Range()
		rows = append(rows, settingRow{Key: s.Key(), Name: s.String(), Min: lo, Max: hi, Value: settings.Get(s)})
	}
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Settings []settingRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Settings: rows,
	}
	return indexTmpl.Execute(w, data)
}
