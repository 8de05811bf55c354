package http

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/custodia-labs/oauth-broker/internal/core/ports/driving"
)

var approvalTemplate = template.Must(template.New("approval").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Authorize {{.ClientName}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#f5f5f5;margin:0;padding:2rem}
.card{max-width:480px;margin:0 auto;background:#fff;border-radius:8px;padding:2rem;box-shadow:0 2px 8px rgba(0,0,0,.1)}
.logo{max-width:64px;max-height:64px}
dt{font-weight:600;margin-top:.75rem}
dd{margin:0;word-break:break-all}
.actions{display:flex;gap:1rem;margin-top:1.5rem}
button{flex:1;padding:.75rem;border-radius:4px;border:0;cursor:pointer;font-size:1rem}
.approve{background:#0051c3;color:#fff}
.cancel{background:#e5e5e5}
</style>
</head>
<body>
<div class="card">
{{if .LogoURI}}<img class="logo" src="{{.LogoURI}}" alt="">{{end}}
<h1>{{.ClientName}} is requesting access</h1>
<dl>
<dt>Client</dt><dd>{{if .ClientURI}}<a href="{{.ClientURI}}" rel="noopener noreferrer">{{.ClientName}}</a>{{else}}{{.ClientName}}{{end}}</dd>
<dt>Redirects to</dt><dd>{{.RedirectURI}}</dd>
{{if .Scope}}<dt>Scope</dt><dd>{{join .Scope " "}}</dd>{{end}}
</dl>
<form method="post" action="/authorize">
<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
<input type="hidden" name="state" value="{{.EncodedState}}">
<div class="actions">
<button type="button" class="cancel" onclick="window.history.back()">Cancel</button>
<button type="submit" class="approve">Approve</button>
</div>
</form>
</div>
</body>
</html>
`))

// renderApproval writes the approval dialog. The page must not be framed.
func renderApproval(w http.ResponseWriter, dialog *driving.ApprovalDialog) error {
	var buf bytes.Buffer
	if err := approvalTemplate.Execute(&buf, dialog); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())
	return err
}
