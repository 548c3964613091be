package api

import "html/template"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>IP Camera Monitor</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #1e1e1e;
            color: #d4d4d4;
            font-family: system-ui, -apple-system, sans-serif;
            display: flex;
            gap: 16px;
            padding: 16px;
            min-height: 100vh;
        }
        .video {
            flex: 1;
            display: flex;
            align-items: center;
            justify-content: center;
            background: #000;
            border-radius: 8px;
            min-height: 480px;
        }
        .video img { max-width: 100%; max-height: 100%; object-fit: contain; }
        .panel { width: 280px; display: flex; flex-direction: column; gap: 10px; }
        label { font-size: 12px; color: #9a9a9a; }
        input {
            width: 100%;
            padding: 6px 8px;
            background: #2d2d2d;
            color: #fff;
            border: 1px solid #444;
            border-radius: 4px;
        }
        button {
            padding: 8px 12px;
            border: none;
            border-radius: 4px;
            background: rgba(70, 130, 180, 0.9);
            color: #fff;
            cursor: pointer;
        }
        button:hover { background: rgba(100, 149, 237, 0.95); }
        button.rec { background: rgba(220, 80, 80, 0.9); }
        .status { font-family: monospace; font-size: 12px; white-space: pre; }
        .error { color: #ce9178; font-size: 12px; min-height: 1em; }
    </style>
</head>
<body>
    <div class="video">
        {{if .HasMain}}<img id="main" src="/stream/main" alt="Live video">{{end}}
    </div>
    <div class="panel">
        <label>URL</label>
        <input id="url" value="{{.Camera.URL}}" placeholder="http://camera/stream">
        <label>IP address</label>
        <input id="host" value="{{.Camera.Host}}">
        <label>Port</label>
        <input id="port" value="{{.Camera.Port}}">
        <label>Username</label>
        <input id="username" value="{{.Camera.Username}}">
        <label>Password</label>
        <input id="password" type="password">
        <button onclick="connect()">Connect</button>
        <button onclick="post('/api/floating/toggle')">Toggle Floating View</button>
        <button id="recBtn" onclick="post('/api/recording/toggle')">Start Recording</button>
        <button onclick="post('/api/disconnect')">Disconnect</button>
        <div class="error" id="error"></div>
        <div class="status" id="status"></div>
    </div>
    <script>
        const hasFloating = {{.HasFloat}};
        let floatingWin = null;

        function field(id) { return document.getElementById(id).value; }

        function connect() {
            post('/api/connect', {
                url: field('url'), host: field('host'), port: field('port'),
                username: field('username'), password: field('password'),
            });
        }

        function post(path, body) {
            document.getElementById('error').textContent = '';
            fetch(path, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: body ? JSON.stringify(body) : '',
            })
                .then(r => r.json())
                .then(data => { if (data.error) document.getElementById('error').textContent = data.error; })
                .catch(err => { document.getElementById('error').textContent = err; });
        }

        function render(s) {
            document.getElementById('status').textContent =
                'connected: ' + s.connected + '\n' +
                'source:    ' + (s.source || '-') + '\n' +
                'view:      ' + s.target + ' (' + s.floating + ')\n' +
                'recording: ' + s.recording + (s.recording_path ? ' -> ' + s.recording_path : '') + '\n' +
                'frames:    ' + s.frames + ' / recorded ' + s.recorded_frames +
                (s.last_error ? '\nerror:     ' + s.last_error : '');

            const rec = document.getElementById('recBtn');
            rec.textContent = s.recording ? 'Stop Recording' : 'Start Recording';
            rec.classList.toggle('rec', s.recording);

            if (!hasFloating) return;
            if (s.floating === 'visible' && (!floatingWin || floatingWin.closed)) {
                floatingWin = window.open('/floating', 'floating', 'width=640,height=480');
            } else if (s.floating !== 'visible' && floatingWin && !floatingWin.closed) {
                floatingWin.close();
                floatingWin = null;
            }
        }

        function events() {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const ws = new WebSocket(proto + location.host + '/api/events');
            ws.onmessage = e => render(JSON.parse(e.data));
            ws.onclose = () => setTimeout(events, 2000);
        }
        events();
    </script>
</body>
</html>`))
