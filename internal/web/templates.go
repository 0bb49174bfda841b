package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Agent Evaluation Runner</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; }
textarea { width: 100%; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
.failed { color: #b00; }
</style>
</head>
<body>
<h1>Basic Agent Evaluation Runner</h1>
<ol>
<li>Enter the Hugging Face username to submit under.</li>
<li>Click "Run Evaluation &amp; Submit All Answers" to fetch the questions, run the agent and submit the answers.</li>
</ol>
<p>Running every question can take a while. The page returns when the score is in.</p>
{{with .Info}}<p>{{range $k, $v := .}}<b>{{$k}}</b>: {{$v}} &nbsp; {{end}}</p>{{end}}
<form method="post" action="/run">
<input type="text" name="username" placeholder="username" value="{{.Username}}">
<button type="submit"{{if .Running}} disabled{{end}}>Run Evaluation &amp; Submit All Answers</button>
</form>
<h2>Run Status / Submission Result</h2>
<textarea rows="5" readonly>{{.Status}}</textarea>
{{with .Report}}
<h2>Questions and Agent Answers</h2>
<p>Run {{.RunID}}</p>
<table>
<tr><th>Task ID</th><th>Question</th><th>Submitted Answer</th></tr>
{{range .Rows}}<tr{{if .Failed}} class="failed"{{end}}><td>{{.TaskID}}</td><td>{{.Question}}</td><td>{{.SubmittedAnswer}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`
