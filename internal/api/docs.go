package api

const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>tabvoice Coordinator API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    body { margin: 0; background: #0d1117; color: #c9d1d9; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; font-size: 14px; }
    a { color: #58a6ff; text-decoration: none; }
    header { padding: 20px 24px 8px; border-bottom: 1px solid #30363d; background: #161b22; }
    h1 { font-size: 22px; color: #e6edf3; margin: 0 0 6px; }
    table { border-collapse: collapse; margin: 12px 0 16px; }
    th, td { border: 1px solid #30363d; padding: 4px 10px; text-align: left; }
    code { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 13px; }
    #reference { height: calc(100vh - 60px); }
  </style>
</head>
<body>
  <header>
    <h1>tabvoice Coordinator API</h1>
    <p>Per-tab voice enhancement control. Tab ids are positive integers assigned by the browser.
    Live state changes are described on the <a href="/docs/events">status events</a> page.</p>
    <table>
      <tr><th>Method</th><th>Path</th><th>Purpose</th></tr>
      <tr><td>POST</td><td><code>/api/v1/tabs/{tab_id}/toggle</code></td><td>Start or stop enhancement for a tab</td></tr>
      <tr><td>GET</td><td><code>/api/v1/tabs/{tab_id}/status</code></td><td>Capture state of a tab</td></tr>
      <tr><td>GET</td><td><code>/api/v1/tabs/{tab_id}/settings</code></td><td>Stored enhancement settings</td></tr>
      <tr><td>PUT</td><td><code>/api/v1/tabs/{tab_id}/settings</code></td><td>Merge a partial settings update</td></tr>
      <tr><td>DELETE</td><td><code>/api/v1/tabs/{tab_id}</code></td><td>Report a closed tab</td></tr>
      <tr><td>GET</td><td><code>/api/v1/tabs</code></td><td>Every known tab and its state</td></tr>
      <tr><td>GET</td><td><code>/api/v1/tabs/{tab_id}/targets</code></td><td>Current processing graph of a live tab</td></tr>
      <tr><td>GET</td><td><code>/api/v1/browser/tabs</code></td><td>Page targets seen over DevTools</td></tr>
      <tr><td>GET</td><td><code>/api/v1/events</code></td><td>Status update stream</td></tr>
      <tr><td>GET</td><td><code>/health</code></td><td>Liveness</td></tr>
    </table>
  </header>
  <div id="reference">
    <elements-api
      apiDescriptionUrl="/openapi.json"
      router="hash"
      layout="sidebar"
      hideExport
      tryItCredentialsPolicy="same-origin"
      darkMode
    />
  </div>
</body>
</html>`
