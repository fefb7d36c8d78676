// Package offline provides the self-contained fallback page served when a
// document navigation misses both network and cache.
package offline

import "net/http"

// Page is the offline fallback document. It must render with zero network
// and zero populated cache, so everything is inline and the only control is
// a full page reload.
const Page = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Offline</title>
<style>
body{font-family:system-ui,sans-serif;display:flex;flex-direction:column;align-items:center;justify-content:center;min-height:100vh;margin:0;background:#fafafa;color:#333}
h1{font-size:1.5rem;margin:0 0 .5rem}
p{margin:0 0 1.5rem;color:#666}
button{padding:.6rem 1.4rem;font-size:1rem;border:1px solid #ccc;border-radius:6px;background:#fff;cursor:pointer}
button:hover{background:#f0f0f0}
</style>
</head>
<body>
<h1>You are offline</h1>
<p>This page is not cached and the network is unreachable.</p>
<button onclick="location.reload()">Retry</button>
</body>
</html>
`

// Write sends the offline page. 503 keeps intermediaries from caching it as
// the real document while the body stays a friendly page, never a raw error.
func Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, err := w.Write([]byte(Page))
	return err
}
