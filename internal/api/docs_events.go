package api

const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Status Events · tabvoice</title>
  <style>
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 12px 24px;
    }
    main { max-width: 860px; margin: 0 auto; padding: 32px 16px 64px; }
    h1 { font-size: 26px; font-weight: 600; color: #e6edf3; margin: 0 0 8px; }
    h2 {
      font-size: 18px;
      color: #e6edf3;
      margin: 36px 0 12px;
      padding-bottom: 8px;
      border-bottom: 1px solid #21262d;
    }
    code, pre { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 13px; }
    pre {
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 6px;
      padding: 14px 16px;
      overflow-x: auto;
    }
    table { border-collapse: collapse; width: 100%; margin-bottom: 16px; }
    th, td { border: 1px solid #30363d; padding: 6px 10px; text-align: left; }
    th { background: #161b22; color: #e6edf3; }
  </style>
</head>
<body>
  <nav><a href="/docs">← API reference</a></nav>
  <main>
    <h1>Status Events</h1>
    <p>Every capture state change of a tab is pushed as a server-sent event.</p>

    <h2>Endpoint</h2>
    <pre>GET /api/v1/events</pre>
    <table>
      <tr><th>Query</th><th>Description</th></tr>
      <tr><td><code>tabs</code></td><td>Comma-separated tab ids. Omit to receive every tab.</td></tr>
    </table>
    <p>On connect the stream replays the current state of every tab that is not inactive.</p>

    <h2>Event format</h2>
    <pre>event: status-update
data: {"tab_id":42,"status":"active"}</pre>
    <p><code>status</code> is one of <code>inactive</code>, <code>starting</code>,
    <code>active</code> or <code>stopping</code>. An <code>error</code> field is present
    when a start failed or timed out.</p>

    <h2>Examples</h2>
    <pre>curl -N 'http://127.0.0.1:8190/api/v1/events?tabs=42'</pre>
    <pre>const es = new EventSource('/api/v1/events');
es.addEventListener('status-update', (e) =&gt; console.log(JSON.parse(e.data)));</pre>

    <h2>Engine link</h2>
    <p>When the coordinator runs with <code>TABVOICE_ENGINE_MODE=remote</code>, the
    processing engine connects to <code>/api/v1/engine/ws</code>. Each text frame carries
    one JSON message such as
    <code>{"type":"start-processing","tabId":42,"streamId":"…","settings":{…}}</code>.</p>
  </main>
</body>
</html>`
