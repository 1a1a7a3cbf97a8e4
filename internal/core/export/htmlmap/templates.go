package htmlmap

import "html/template"

var (
	popupTemplate = template.Must(template.New("popup").Parse(popupHTML))
	pageTemplate  = template.Must(template.New("page").Parse(pageHTML))
)

const popupHTML = `<div class="popup"><b>{{.Affiliation}}</b>{{if .Location}}<br><i>{{.Location}}</i>{{end}}
<ul>{{range .Citers}}
<li>{{if .ProfileLink}}<a href="{{.ProfileLink}}" target="_blank" rel="noopener">{{.Name}}</a>{{else}}{{.Name}}{{end}}: {{.CitingPaper}}{{if .CitedPaper}} <span class="cited">(cites {{.CitedPaper}})</span>{{end}}</li>{{end}}
</ul></div>`

const pageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body, #map { height: 100%; margin: 0; }
.popup ul { padding-left: 1.2em; margin: 0.4em 0 0 0; max-height: 240px; overflow-y: auto; }
.popup .cited { color: #666; }
</style>
</head>
<body>
<div id="map" data-markers="{{.Count}}"></div>
<script>
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLng}}], {{.Zoom}});
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  maxZoom: 19,
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
var markers = {{.Markers}};
markers.forEach(function (m) {
  L.circleMarker([m.lat, m.lng], {radius: 8, color: m.color, fillColor: m.color, fillOpacity: 0.8})
    .bindPopup(m.popup, {maxWidth: 320})
    .addTo(map);
});
</script>
</body>
</html>
`
