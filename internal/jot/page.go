package handler

import "html/template"

const pageTemplate = `<!doctype html>
<html lang="en">
    <head>
        <meta charset="UTF-8" />
        <meta name="viewport" content="width=device-width, initial-scale=1.0" />
        <title>jotter</title>
        <style>
            * { margin: 0; padding: 0; box-sizing: border-box; }
            html, body { height: 100%; width: 100%; overflow: hidden; }
            #jot-field {
                width: 100vw; height: 100vh; border: none; outline: none; resize: none; padding: 20px;
                font-family: "SF Mono", Monaco, "Cascadia Code", "Roboto Mono", Consolas, "Courier New", monospace;
                font-size: 16px; line-height: 1.5; background-color: #ffffff; color: #333333;
            }
            @media (prefers-color-scheme: dark) {
                #jot-field { background-color: #333333; color: #ffffff; }
            }
        </style>
    </head>
    <body>
        <textarea id="jot-field" placeholder="Start typing...">{{.Content}}</textarea>
        <script>
            (function () {
                var field = document.getElementById("jot-field");
                var timer = null;
                field.addEventListener("input", function () {
                    clearTimeout(timer);
                    timer = setTimeout(function () {
                        var body = new URLSearchParams();
                        body.set("content", field.value);
                        fetch("/write", { method: "POST", body: body, credentials: "same-origin" });
                    }, 500);
                });

                function connect() {
                    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
                    var ws = new WebSocket(scheme + location.host + "/updates");
                    ws.onmessage = function (ev) {
                        var msg = JSON.parse(ev.data);
                        if (msg.type === "UPDATE" && field.value !== (msg.payload || "")) {
                            var start = field.selectionStart, end = field.selectionEnd;
                            field.value = msg.payload || "";
                            field.setSelectionRange(start, end);
                        } else if (msg.type === "CLEAN_URL") {
                            history.replaceState(null, "", "/");
                        }
                    };
                    ws.onclose = function () { setTimeout(connect, 1000); };
                }
                connect();
            })();
        </script>
    </body>
</html>`

var page = template.Must(template.New("index").Parse(pageTemplate))
