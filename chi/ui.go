package chi

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/conversation"
	"github.com/fwojciec/dataops/goldmark"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

const uiCookie = "dataops_ui"

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var page = template.Must(template.New("index.html.tmpl").Funcs(template.FuncMap{
	"markdown": markdownHTML,
}).ParseFS(templateFS, "templates/index.html.tmpl"))

// Examples are the sample questions offered on the start page.
var Examples = []string{
	"What are the top 10 languages by bytes for tensorflow/tensorflow?",
	"Find files in microsoft/vscode that contain the term 'TODO' and show a snippet",
	"Who are the top committers in the last year for facebook/react?",
	"Show the top repositories by watch count (sample set)",
	"Search sampled contents for the term 'security' and show paths/snippets",
	"Give license distribution for repositories like 'google/tensorflow', 'microsoft/vscode'",
}

// uiSession is the state of one browser: a conversation client and the
// invocation it is running, if any.
type uiSession struct {
	client *conversation.Client

	mu      sync.Mutex
	running bool
	input   string
	live    []dataops.Event
}

func (u *uiSession) snapshot() (running bool, input string, live []dataops.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running, u.input, slices.Clone(u.live)
}

// session returns the browser's uiSession, creating it and its agent
// session on first use.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*uiSession, error) {
	id := ""
	if c, err := r.Cookie(uiCookie); err == nil {
		id = c.Value
	}
	if id != "" {
		if item := s.ui.Get(id); item != nil {
			return item.Value(), nil
		}
	}
	u := &uiSession{client: conversation.New(s.cfg.Agent, s.cfg.UIUserID, conversation.WithLogger(s.log))}
	if err := u.client.Start(r.Context()); err != nil {
		return nil, err
	}
	id = uuid.NewString()
	s.ui.Set(id, u, ttlcache.DefaultTTL)
	http.SetCookie(w, &http.Cookie{Name: uiCookie, Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	return u, nil
}

type exchangeView struct {
	Input  string
	Events []eventView
}

type eventView struct {
	N        int
	Markdown string
	Last     bool
}

type pageData struct {
	Project   string
	Location  string
	Dataset   string
	SessionID string
	Examples  []string
	Error     string

	Running bool
	Input   string
	Live    []string
	Consent *consentView
	History []exchangeView // newest first
}

type consentView struct {
	SQL   string
	Bytes string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Project:  orDefault(s.cfg.Project, "Not configured"),
		Location: orDefault(s.cfg.Location, "Not configured"),
		Dataset:  s.cfg.Dataset,
		Examples: Examples,
	}
	u, err := s.session(w, r)
	if err != nil {
		s.log.Error("failed to create ui session", "error", err)
		data.Error = fmt.Sprintf("Failed to create session: %v", err)
		s.render(w, data)
		return
	}

	data.SessionID = truncate(u.client.SessionID(), 20)
	running, input, live := u.snapshot()
	data.Running, data.Input = running, input
	for _, e := range live {
		data.Live = append(data.Live, dataops.RenderEvent(e))
	}
	if e, ok := u.client.PendingConsent(); ok {
		p, _ := dataops.ConsentPrompt(e)
		sql, _ := p.Args["sql"].(string)
		data.Consent = &consentView{SQL: sql, Bytes: dataops.FormatBytes(p.Args["bytes_processed"])}
	}
	history := u.client.History()
	for i := len(history) - 1; i >= 0; i-- {
		ex := history[i]
		v := exchangeView{Input: ex.Input}
		for _, line := range ex.Rendered {
			if strings.TrimSpace(line) != "" {
				v.Events = append(v.Events, eventView{N: len(v.Events) + 1, Markdown: line})
			}
		}
		if n := len(v.Events); n > 0 {
			v.Events[n-1].Last = true
		}
		data.History = append(data.History, v)
	}
	s.render(w, data)
}

func (s *Server) render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, data); err != nil {
		s.log.Error("failed to render page", "error", err)
	}
}

// handleAsk starts an invocation in the background and redirects back to
// the page, which follows progress through /ui/stream.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.FormValue("message"))
	u, err := s.session(w, r)
	if err != nil || text == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	u.running, u.input, u.live = true, text, nil
	u.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.QueryTimeout)
		defer cancel()
		err := u.client.Submit(ctx, text, func(e dataops.Event) {
			u.mu.Lock()
			u.live = append(u.live, e)
			u.mu.Unlock()
		})
		if err != nil {
			s.log.Error("ui query failed", "error", err)
		}
		u.mu.Lock()
		u.running, u.input, u.live = false, "", nil
		u.mu.Unlock()
	}()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleUIConsent(w http.ResponseWriter, r *http.Request) {
	u, err := s.session(w, r)
	if err == nil {
		approve, _ := strconv.ParseBool(r.FormValue("approve"))
		if err := u.client.Consent(r.Context(), approve); err != nil {
			s.log.Warn("consent failed", "error", err)
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if u, err := s.session(w, r); err == nil {
		u.client.Clear()
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if u, err := s.session(w, r); err == nil {
		if err := u.client.Reset(r.Context()); err != nil {
			s.log.Error("failed to reset session", "error", err)
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleUIStream pushes the rendered events of the running invocation as
// they arrive, a "consent" message when it waits for a decision, and
// "done" when it finishes.
func (s *Server) handleUIStream(w http.ResponseWriter, r *http.Request) {
	u, err := s.session(w, r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no session")
		return
	}
	out, ok := newSSE(w)
	if !ok {
		return
	}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	sent := 0
	asked := false
	for {
		running, _, live := u.snapshot()
		for ; sent < len(live); sent++ {
			html := markdownHTML(dataops.RenderEvent(live[sent]))
			out.send("event", []byte(html))
		}
		if _, pending := u.client.PendingConsent(); pending && !asked {
			asked = true
			out.send("consent", []byte("{}"))
		}
		if !running {
			out.send("done", []byte("{}"))
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func markdownHTML(src string) template.HTML {
	out, err := goldmark.HTML(src)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
