package web

import (
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/pdx-proptype/internal/clean"
	"github.com/pdx-proptype/internal/pipeline"
	"github.com/pdx-proptype/internal/schema"
	"github.com/pdx-proptype/internal/table"
)

const maxUploadBytes = 32 << 20

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Predict Property Type</title></head>
<body>
<h1>Predict Property Type</h1>
<p>Upload a .csv listing export with the full 28-column header
(MLS#, Type, Prop. Cat., Prop. Cond., Tax, Address, City, Zip, Area, BD,
Baths, # Levels, Apx Sqft, Price SqFt, Sld Price Sqft, Lot Size,
Pend. Date, DOM, CDOM, List Date, List Price, Sold Date, Price,
Yr. Built, HOA Dues, # Garage, # Fireplaces, Terms).</p>
<form action="/predict" method="post" enctype="multipart/form-data">
  <input type="file" name="file" accept=".csv" required>
  <button type="submit">Run Predictions</button>
</form>
</body>
</html>`))

var resultTemplate = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head><title>Prediction Results</title></head>
<body>
<h1>Prediction Results</h1>
<p>{{.RowsOut}} of {{.RowsIn}} rows predicted ({{.Dropped}} dropped, {{.Unknown}} unseen categorical values).</p>
{{if .DropWarnings}}<h2>Row removals</h2><ul>
{{range .DropWarnings}}<li>{{.}}</li>{{end}}
</ul>{{end}}
{{if .QualityWarnings}}<h2>Data quality</h2><ul>
{{range .QualityWarnings}}<li>{{.}}</li>{{end}}
</ul>{{end}}
<form action="/predict/download" method="post" enctype="multipart/form-data">
  <input type="file" name="file" accept=".csv" required>
  <button type="submit">Download {{.Filename}}</button>
</form>
<p><a href="/">Upload another file</a></p>
</body>
</html>`))

type resultView struct {
	RowsIn          int
	RowsOut         int
	Dropped         int
	Unknown         int
	DropWarnings    []string
	QualityWarnings []string
	Filename        string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		log.Printf("Error rendering index: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

// runUpload parses the uploaded CSV and runs the pipeline on it.
func (s *Server) runUpload(w http.ResponseWriter, r *http.Request) (*table.Table, *pipeline.Report, string, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "failed to parse upload", http.StatusBadRequest)
		return nil, nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return nil, nil, "", false
	}
	defer file.Close()

	raw, err := table.ReadCSV(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read CSV: %v", err), http.StatusBadRequest)
		return nil, nil, "", false
	}

	annotated, report, err := s.runner.Run(raw)
	if err != nil {
		var schemaErr *schema.Error
		if errors.As(err, &schemaErr) {
			http.Error(w, schemaErr.Error(), http.StatusUnprocessableEntity)
		} else {
			log.Printf("Error running pipeline: %v", err)
			http.Error(w, "prediction failed", http.StatusInternalServerError)
		}
		return nil, nil, "", false
	}

	if s.store != nil {
		if _, err := s.store.RecordRun(header.Filename, report); err != nil {
			log.Printf("Warning: failed to record run audit: %v", err)
		}
	}
	return annotated, report, header.Filename, true
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	_, report, _, ok := s.runUpload(w, r)
	if !ok {
		return
	}

	view := resultView{
		RowsIn:   report.RowsIn,
		RowsOut:  report.RowsOut,
		Unknown:  report.UnknownCategories,
		Filename: pipeline.OutputFilename,
	}
	for _, n := range report.Drops {
		view.Dropped += n
	}
	for _, warning := range report.Warnings {
		if warning.Severity == clean.SeverityDrop {
			view.DropWarnings = append(view.DropWarnings, warning.Message)
		} else {
			view.QualityWarnings = append(view.QualityWarnings, warning.Message)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := resultTemplate.Execute(w, view); err != nil {
		log.Printf("Error rendering results: %v", err)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	annotated, _, _, ok := s.runUpload(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pipeline.OutputFilename))
	if err := annotated.WriteCSV(w); err != nil {
		log.Printf("Error writing CSV response: %v", err)
	}
}
