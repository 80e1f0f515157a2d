// Package ui renders the narrator page and its stateless widgets.
package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/loqalabs/loqa-narrator/internal/voice"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

// Routes the page posts to. The API package serves them.
const (
	PathModalOpen  = "/modal/open"
	PathModalClose = "/modal/close"
)

type ButtonProps struct {
	Text     string
	Kind     string // primary, secondary, danger
	Action   string // URL the button posts to
	Disabled bool
}

type CardProps struct {
	Title       string
	Description string
}

type ModalProps struct {
	Show        bool
	CloseAction string
	Body        template.HTML
}

func Button(p ButtonProps) template.HTML {
	return render("button", p)
}

func Card(p CardProps) template.HTML {
	return render("card", p)
}

// Modal renders nothing at all unless Show is set.
func Modal(p ModalProps) template.HTML {
	if !p.Show {
		return ""
	}
	return render("modal", struct {
		Body  template.HTML
		Close template.HTML
	}{
		Body:  p.Body,
		Close: Button(ButtonProps{Text: "Close", Kind: "danger", Action: p.CloseAction}),
	})
}

// render executes one of the embedded widget templates. Widget props are plain
// strings, so execution can only fail on a broken template.
func render(name string, data any) template.HTML {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		panic(fmt.Sprintf("ui: render %s: %v", name, err))
	}
	return template.HTML(buf.String())
}

// PageData is everything the page layout needs.
type PageData struct {
	Title     string
	Snapshot  voice.Snapshot
	ModalOpen bool
}

type pageView struct {
	Title     string
	OpenModal template.HTML
	Panel     panelView
	Card      template.HTML
	Modal     template.HTML
}

type panelView struct {
	Snapshot      voice.Snapshot
	SpeakDisabled bool
	Controls      []template.HTML
}

// RenderPage writes the full narrator page.
func RenderPage(w io.Writer, data PageData) error {
	title := data.Title
	if title == "" {
		title = "My Components Library"
	}
	view := pageView{
		Title:     title,
		OpenModal: Button(ButtonProps{Text: "Open Modal", Kind: "primary", Action: PathModalOpen}),
		Panel:     newPanelView(data.Snapshot),
		Card: Card(CardProps{
			Title:       "Student Card",
			Description: "This card is coming from my reusable component.",
		}),
		Modal: Modal(ModalProps{
			Show:        data.ModalOpen,
			CloseAction: PathModalClose,
			Body:        template.HTML("<h2>Hello!</h2>\n<p>This is my custom modal component.</p>"),
		}),
	}
	if err := templates.ExecuteTemplate(w, "page", view); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

func newPanelView(s voice.Snapshot) panelView {
	return panelView{
		Snapshot:      s,
		SpeakDisabled: strings.TrimSpace(s.Message) == "" || !s.Supported,
		Controls: []template.HTML{
			Button(ButtonProps{Text: "Pause ⏸", Kind: "secondary", Action: "/api/pause", Disabled: !s.Speaking || s.Paused}),
			Button(ButtonProps{Text: "Resume ▶️", Kind: "secondary", Action: "/api/resume", Disabled: !s.Paused}),
			Button(ButtonProps{Text: "Stop ⏹", Kind: "danger", Action: "/api/stop", Disabled: !s.Speaking && !s.Paused}),
			Button(ButtonProps{Text: "Run Debug Test 🧪", Kind: "secondary", Action: "/api/debug"}),
			Button(ButtonProps{Text: "Log Status 📋", Kind: "secondary", Action: "/api/log-status"}),
		},
	}
}
