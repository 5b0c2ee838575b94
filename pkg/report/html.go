package report

import (
	"html/template"
	"io"
	"os"
	"path/filepath"
)

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms": func(v float64) string { return formatMs(v) },
	"chosen": func(p *float64) string {
		if p == nil {
			return ""
		}
		return formatMs(*p)
	},
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Query Runtime Prediction Comparison</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 20px; }
    table { border-collapse: collapse; width: 100%; margin-top: 12px; }
    th, td { border: 1px solid #ddd; padding: 8px; font-size: 13px; }
    th { background: #f4f4f4; }
    .small { font-size: 12px; color: #555; }
  </style>
</head>
<body>
  <h1>Query Runtime Prediction Comparison</h1>
  <p class="small">Baseline ({{.Mode}}), LCM (bagged regression trees) and Hybrid (a selector picks one of the two per query).</p>

  <h2>Summary</h2>
  <p class="small"><strong>MAE</strong>: Baseline {{ms .Summary.MAEBaseline}} ms; LCM {{ms .Summary.MAELCM}} ms; Hybrid {{ms .Summary.MAEHybrid}} ms.</p>
  <p class="small"><strong>Winner counts</strong>:{{range $name, $n := .Summary.WinnerCounts}} {{$name}}: {{$n}}{{end}}</p>
  {{- with .Summary.ChosenPredMeanMs}}
  <p class="small"><strong>LCM chosen-plan predicted mean</strong>: {{chosen .}} ms; <strong>LCM predicted better count</strong>: {{$.Summary.LCMPredictedBetterCount}}; <strong>Hybrid predicted better count</strong>: {{$.Summary.HybridPredictedBetterCount}}.</p>
  {{- end}}

  <h2>Per-query results</h2>
  <table id="results">
    <thead>
      <tr>
        <th>query_name</th>
        <th>category</th>
        <th>actual_runtime_ms</th>
        <th>pred_baseline_ms</th>
        <th>pred_lcm_ms</th>
        <th>pred_hybrid_ms</th>
        <th>chosen_pred_ms</th>
        <th>lcm_would_be_faster</th>
        <th>closest_model</th>
      </tr>
    </thead>
    <tbody>
    {{- range .Rows}}
      <tr>
        <td>{{.QueryName}}</td>
        <td>{{.Category}}</td>
        <td>{{ms .ActualMs}}</td>
        <td>{{ms .PredBaseline}}</td>
        <td>{{ms .PredLCM}}</td>
        <td>{{ms .PredHybrid}}</td>
        <td>{{chosen .ChosenPredMs}}</td>
        <td>{{if .WouldBeFaster}}yes{{else}}no{{end}}</td>
        <td>{{.ClosestModel}}</td>
      </tr>
    {{- end}}
    </tbody>
  </table>

  <script>
    const rows = {{.Rows}};
    const summary = {{.Summary}};
  </script>
</body>
</html>
`))

// RenderHTML writes a self-contained page with the comparison table and the
// rows and summary embedded as JSON.
func RenderHTML(w io.Writer, rows []Row, summary Summary, baselineMode string) error {
	if rows == nil {
		rows = []Row{}
	}
	return page.Execute(w, struct {
		Rows    []Row
		Summary Summary
		Mode    string
	}{rows, summary, baselineMode})
}

// SaveHTML renders into path, creating parent directories.
func SaveHTML(path string, rows []Row, summary Summary, baselineMode string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := RenderHTML(f, rows, summary, baselineMode); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
