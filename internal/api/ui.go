package api

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"studydesk/internal/assessment"
	"studydesk/internal/progress"
	"studydesk/internal/workspace"
)

const maxUIFiles = 3

var uiFuncs = template.FuncMap{
	"bytes":    func(n int64) string { return humanize.Bytes(uint64(max(n, 0))) },
	"ago":      humanize.Time,
	"doctype":  workspace.DocType,
	"terminal": func(s progress.Stage) bool { return s.Terminal() },
}

var uiTemplates = template.Must(template.New("layout").Funcs(uiFuncs).Parse(`{{define "layout"}}
<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  {{if .Running}}<meta http-equiv="refresh" content="1"/>{{end}}
  <title>StudyDesk{{if .Title}} · {{.Title}}{{end}}</title>
  <style>
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:880px;margin:32px auto;padding:0 16px;color:#0b0b0b;background:#fafafa}
    header{margin-bottom:24px}
    h1{font-size:22px;margin:0 0 8px}
    a{color:#0b63e5;text-decoration:none}
    a:hover{text-decoration:underline}
    .card{background:#fff;border:1px solid #e9e9e9;border-radius:10px;padding:16px;margin:12px 0}
    .row{display:flex;gap:12px;flex-wrap:wrap;align-items:center}
    .btn{display:inline-block;background:#0b63e5;color:#fff;border:none;padding:10px 14px;border-radius:8px;cursor:pointer}
    .btn.secondary{background:#444}
    .btn.danger{background:#b3261e}
    input[type=text],input[type=number],select,textarea{padding:9px 10px;border:1px solid #dcdcdc;border-radius:8px;width:100%;box-sizing:border-box}
    progress{width:100%}
    .muted{color:#666}
    .mono{font-family:ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,monospace}
    .grid{display:grid;grid-template-columns:2fr 1fr;gap:12px}
    .list{margin:0;padding-left:18px}
    .list li{margin:10px 0}
    .status{display:inline-block;padding:4px 8px;border-radius:6px;background:#efefef;font-size:12px}
    .status.completed{background:#e3f6e8}
    .status.error{background:#fde8e7}
    footer{margin-top:24px;color:#666;font-size:12px}
  </style>
  </head>
<body>
  <header>
    <h1><a href="/">StudyDesk</a></h1>
    <div class="muted">Document uploads and assessment generation</div>
  </header>
  {{if .Error}}
  <div class="card" style="border-color:#f2b8b5;background:#fff6f6">
    <strong style="color:#b3261e">Error:</strong> <span class="muted">{{.Error}}</span>
  </div>
  {{end}}
  {{if eq .Page "workspace"}}{{template "workspace-content" .}}
  {{else if eq .Page "assessment"}}{{template "assessment-content" .}}
  {{else}}{{template "home-content" .}}{{end}}
  <footer>
    <div>API base: <span class="mono">/api/v1</span></div>
  </footer>
</body>
</html>
{{end}}

{{define "home-content"}}
  <div class="card">
    <h2>Open a workspace</h2>
    <form method="post" action="/ui/workspaces">
      <button class="btn" type="submit">Create</button>
    </form>
    <div class="muted">POST /api/v1/workspaces</div>
  </div>

  <div class="card">
    <h2>Open existing workspace</h2>
    <form method="get" action="/ui/workspaces">
      <div class="row">
        <input type="text" name="id" placeholder="Workspace ID" required />
        <button class="btn" type="submit">Open</button>
      </div>
    </form>
    <div class="muted">GET /api/v1/workspaces/{id}</div>
  </div>

  <div class="card">
    <h2>Document library</h2>
    <ul class="list">
    {{range .Documents}}
      <li>{{.Name}} {{if .Processed}}<span class="status completed">processed</span>{{else}}<span class="status">processing</span>{{end}}</li>
    {{end}}
    </ul>
    <div class="muted">GET /api/v1/documents</div>
  </div>
{{end}}

{{define "workspace-content"}}
  {{$ws := .Workspace.ID}}
  <div class="card">
    <h2>Workspace <span class="mono">{{$ws}}</span></h2>
    <div class="muted">Opened {{ago .Workspace.CreatedAt}}</div>
    <form method="post" action="/ui/workspaces/{{$ws}}/dispose" style="margin-top:12px">
      <button class="btn danger" type="submit">Close workspace</button>
      <a class="btn secondary" href="/ui/workspaces/{{$ws}}" style="margin-left:8px">Refresh</a>
    </form>
  </div>

  <div class="card">
    <h3>Uploads</h3>
    {{if .Uploads}}
      <ul class="list">
      {{range .Uploads}}
        <li>
          <div class="row"><strong>{{.Label}}</strong> <span class="status">{{doctype .Label}}</span> <span class="muted">{{bytes .SizeBytes}} · {{.SizeClass}}</span></div>
          <div class="row"><span class="status {{.Stage}}">{{.Stage}}</span> <span class="mono">{{.Progress}}%</span>{{if .Error}} <span class="muted">error: {{.Error}}</span>{{end}}</div>
          <progress max="100" value="{{.Progress}}"></progress>
          <div class="row">
            {{if not (terminal .Stage)}}
            <form method="post" action="/ui/workspaces/{{$ws}}/uploads/{{.ID}}/fail"><button class="btn secondary" type="submit">Simulate failure</button></form>
            {{end}}
            <form method="post" action="/ui/workspaces/{{$ws}}/uploads/{{.ID}}/remove"><button class="btn secondary" type="submit">Remove</button></form>
          </div>
        </li>
      {{end}}
      </ul>
    {{else}}
      <div class="muted">No uploads yet</div>
    {{end}}
  </div>

  <div class="card">
    <h3>Add documents (.pdf, .doc, .docx, .txt)</h3>
    <form method="post" action="/ui/workspaces/{{$ws}}/uploads">
      {{range .FileSlots}}
      <div class="grid" style="margin-bottom:8px">
        <input type="text" name="name" placeholder="notes.pdf" />
        <input type="number" name="size" placeholder="size in bytes" min="0" />
      </div>
      {{end}}
      <button class="btn" type="submit">Upload</button>
    </form>
    <div class="muted">POST /api/v1/workspaces/{{$ws}}/uploads</div>
  </div>

  <div class="card">
    <h3>Generate assessment</h3>
    <form method="post" action="/ui/workspaces/{{$ws}}/assessments">
      <div style="margin-bottom:8px">
        <select name="source_id">
          <option value="">Select a document</option>
          {{range .Sources}}
          <option value="{{.ID}}" {{if not .Processed}}disabled{{end}}>{{.Name}}{{if not .Processed}} (processing){{end}}</option>
          {{end}}
        </select>
      </div>
      <div class="row" style="margin-bottom:8px">
        {{range .QuestionTypes}}
        <label><input type="checkbox" name="question_types" value="{{.}}" /> {{.}}</label>
        {{end}}
      </div>
      <div class="grid" style="margin-bottom:8px">
        <input type="number" name="count" value="10" min="5" max="50" />
        <select name="difficulty">
          {{range .Difficulties}}<option value="{{.}}">{{.}}</option>{{end}}
        </select>
      </div>
      <textarea name="custom_instructions" rows="3" placeholder="Custom instructions (optional)"></textarea>
      <div style="margin-top:12px"><button class="btn" type="submit">Generate</button></div>
    </form>
    <div class="muted">POST /api/v1/workspaces/{{$ws}}/assessments</div>
  </div>

  <div class="card">
    <h3>Assessments</h3>
    {{if .Assessments}}
      <ul class="list">
      {{range .Assessments}}
        <li>
          <div class="row"><a href="/ui/workspaces/{{$ws}}/assessments/{{.ID}}">{{.SourceName}}</a> <span class="muted">{{.Spec.Count}} questions · {{.Spec.Difficulty}}</span></div>
          <div class="row"><span class="status {{.Stage}}">{{.Stage}}</span> <span class="mono">{{.Progress}}%</span>{{if .Error}} <span class="muted">error: {{.Error}}</span>{{end}}</div>
          <progress max="100" value="{{.Progress}}"></progress>
          {{if .Ready}}<a class="btn" href="/api/v1/workspaces/{{$ws}}/assessments/{{.ID}}/export">Download zip</a>{{end}}
        </li>
      {{end}}
      </ul>
    {{else}}
      <div class="muted">No assessments yet</div>
    {{end}}
  </div>
{{end}}

{{define "assessment-content"}}
  {{$ws := .Workspace.ID}}
  <div class="card">
    <h2>{{.Assessment.SourceName}}</h2>
    <div>Status: <span class="status {{.Assessment.Stage}}">{{.Assessment.Stage}}</span> <span class="mono">{{.Assessment.Progress}}%</span></div>
    <div class="muted">{{.Assessment.Spec.Count}} questions · {{.Assessment.Spec.Difficulty}}</div>
    <div style="margin-top:12px">
      <a class="btn secondary" href="/ui/workspaces/{{$ws}}">Back</a>
      {{if .Assessment.Ready}}<a class="btn" href="/api/v1/workspaces/{{$ws}}/assessments/{{.Assessment.ID}}/export" style="margin-left:8px">Download zip</a>{{end}}
    </div>
  </div>
  {{if .Assessment.Ready}}
  <div class="card">
    <ol class="list">
    {{range .Assessment.Questions}}
      <li>
        <div><strong>{{.Prompt}}</strong></div>
        <div class="muted">{{.Type}} · {{.Difficulty}}</div>
        {{if .Options}}<ul class="list">{{range .Options}}<li>{{.}}</li>{{end}}</ul>{{end}}
        {{if .CorrectAnswer}}<div class="muted">Answer: {{.CorrectAnswer}}</div>{{end}}
      </li>
    {{end}}
    </ol>
  </div>
  {{end}}
{{end}}
`))

// RegisterUIRoutes registers minimal HTML UI without JS
func (a *API) RegisterUIRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(uiTemplates)
	router.GET("/", a.UIHome)
	router.GET("/ui/workspaces", a.UIOpenExisting)
	router.POST("/ui/workspaces", a.UICreateWorkspace)

	ui := router.Group("/ui/workspaces/:ws", a.uiWorkspace)
	{
		ui.GET("", a.UIWorkspace)
		ui.POST("/dispose", a.UIDispose)
		ui.POST("/uploads", a.UIAddUploads)
		ui.POST("/uploads/:id/fail", a.UIFailUpload)
		ui.POST("/uploads/:id/remove", a.UIRemoveUpload)
		ui.POST("/assessments", a.UIGenerate)
		ui.GET("/assessments/:id", a.UIAssessment)
	}
}

// UIHome renders the home page
func (a *API) UIHome(c *gin.Context) { a.renderHome(c, http.StatusOK, "") }

func (a *API) renderHome(c *gin.Context, status int, errMsg string) {
	c.HTML(status, "layout", gin.H{"Page": "home", "Documents": a.workspaces.Catalog(), "Error": errMsg})
}

// UIOpenExisting redirects to the workspace page by id
func (a *API) UIOpenExisting(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.Redirect(http.StatusFound, "/ui/workspaces/"+id)
}

// UICreateWorkspace creates a workspace and redirects to its page
func (a *API) UICreateWorkspace(c *gin.Context) {
	ws, err := a.workspaces.Create()
	if err != nil {
		a.renderHome(c, http.StatusServiceUnavailable, "server busy: try again later")
		return
	}
	c.Redirect(http.StatusFound, "/ui/workspaces/"+ws.ID)
}

func (a *API) uiWorkspace(c *gin.Context) {
	ws, ok := a.workspaces.Get(c.Param("ws"))
	if !ok {
		a.renderHome(c, http.StatusNotFound, "workspace not found")
		c.Abort()
		return
	}
	c.Set(workspaceKey, ws)
	c.Next()
}

// UIWorkspace renders the dashboard of a workspace
func (a *API) UIWorkspace(c *gin.Context) {
	a.renderWorkspace(c, http.StatusOK, "")
}

func (a *API) renderWorkspace(c *gin.Context, status int, errMsg string) {
	ws := currentWorkspace(c)
	uploads := ws.Uploads.List()
	assessments := ws.Assessments.List()
	running := false
	for _, u := range uploads {
		running = running || !u.Stage.Terminal()
	}
	for _, as := range assessments {
		running = running || !as.Stage.Terminal()
	}
	c.HTML(status, "layout", gin.H{
		"Page":          "workspace",
		"Title":         ws.ID,
		"Error":         errMsg,
		"Running":       running && errMsg == "",
		"Workspace":     ws,
		"Uploads":       uploads,
		"Assessments":   assessments,
		"Sources":       ws.Sources(),
		"FileSlots":     make([]struct{}, maxUIFiles),
		"QuestionTypes": assessment.QuestionTypes,
		"Difficulties":  []assessment.Difficulty{assessment.DifficultyMedium, assessment.DifficultyEasy, assessment.DifficultyHard, assessment.DifficultyMixed},
	})
}

// UIDispose closes the workspace and returns home
func (a *API) UIDispose(c *gin.Context) {
	ws := currentWorkspace(c)
	if err := a.workspaces.Dispose(c.Request.Context(), ws.ID); err != nil {
		a.renderHome(c, http.StatusNotFound, err.Error())
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// UIAddUploads reads name/size pairs from the form and starts uploads
func (a *API) UIAddUploads(c *gin.Context) {
	ws := currentWorkspace(c)
	names := c.PostFormArray("name")
	sizes := c.PostFormArray("size")
	files := make([]workspace.Upload, 0, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var size int64
		if i < len(sizes) && strings.TrimSpace(sizes[i]) != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(sizes[i]), 10, 64)
			if err != nil {
				a.renderWorkspace(c, http.StatusBadRequest, "invalid size for "+name)
				return
			}
			size = n
		}
		files = append(files, workspace.Upload{Name: name, SizeBytes: size})
	}
	if _, err := ws.Upload(files); err != nil {
		a.renderWorkspace(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Redirect(http.StatusFound, "/ui/workspaces/"+ws.ID)
}

// UIFailUpload simulates a failure and redirects back
func (a *API) UIFailUpload(c *gin.Context) {
	ws := currentWorkspace(c)
	if _, err := ws.Uploads.Fail(c.Param("id"), ""); err != nil {
		a.renderWorkspace(c, http.StatusConflict, err.Error())
		return
	}
	c.Redirect(http.StatusFound, "/ui/workspaces/"+ws.ID)
}

// UIRemoveUpload removes an upload and redirects back
func (a *API) UIRemoveUpload(c *gin.Context) {
	ws := currentWorkspace(c)
	ws.Uploads.Remove(c.Param("id"))
	c.Redirect(http.StatusFound, "/ui/workspaces/"+ws.ID)
}

// UIGenerate starts an assessment from the form
func (a *API) UIGenerate(c *gin.Context) {
	ws := currentWorkspace(c)
	count, err := strconv.Atoi(strings.TrimSpace(c.PostForm("count")))
	if err != nil {
		a.renderWorkspace(c, http.StatusBadRequest, "count: must be a number")
		return
	}
	types := make([]assessment.QuestionType, 0, len(assessment.QuestionTypes))
	for _, t := range c.PostFormArray("question_types") {
		types = append(types, assessment.QuestionType(t))
	}
	generated, err := ws.Assessments.Generate(assessment.Spec{
		SourceID:           c.PostForm("source_id"),
		QuestionTypes:      types,
		Count:              count,
		Difficulty:         assessment.Difficulty(c.PostForm("difficulty")),
		CustomInstructions: c.PostForm("custom_instructions"),
	})
	if err != nil {
		a.renderWorkspace(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Redirect(http.StatusFound, "/ui/workspaces/"+ws.ID+"/assessments/"+generated.ID)
}

// UIAssessment renders one assessment with its questions
func (a *API) UIAssessment(c *gin.Context) {
	ws := currentWorkspace(c)
	found, err := ws.Assessments.Get(c.Param("id"))
	if err != nil {
		a.renderWorkspace(c, http.StatusNotFound, err.Error())
		return
	}
	c.HTML(http.StatusOK, "layout", gin.H{
		"Page":       "assessment",
		"Title":      found.SourceName,
		"Running":    !found.Stage.Terminal(),
		"Workspace":  ws,
		"Assessment": found,
	})
}
