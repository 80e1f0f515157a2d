package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-narrator/internal/speech"
	"github.com/loqalabs/loqa-narrator/internal/voice"
)

func TestButton(t *testing.T) {
	html := string(Button(ButtonProps{Text: "Go <now>", Kind: "primary", Action: "/api/speak"}))
	for _, want := range []string{`action="/api/speak"`, `class="btn primary"`, "Go &lt;now&gt;"} {
		if !strings.Contains(html, want) {
			t.Fatalf("button %q missing %q", html, want)
		}
	}
	if strings.Contains(html, "disabled") {
		t.Fatalf("enabled button rendered disabled: %s", html)
	}
	if !strings.Contains(string(Button(ButtonProps{Text: "x", Disabled: true})), " disabled") {
		t.Fatal("disabled flag not rendered")
	}
}

func TestCard(t *testing.T) {
	html := string(Card(CardProps{Title: "Student Card", Description: "Reusable"}))
	if !strings.Contains(html, "<h3>Student Card</h3>") || !strings.Contains(html, "<p>Reusable</p>") {
		t.Fatalf("unexpected card %s", html)
	}
}

func TestModalHiddenRendersNothing(t *testing.T) {
	if got := Modal(ModalProps{Show: false, CloseAction: "/close", Body: "<p>hi</p>"}); got != "" {
		t.Fatalf("hidden modal rendered %q", got)
	}
	html := string(Modal(ModalProps{Show: true, CloseAction: "/close", Body: "<p>hi</p>"}))
	if !strings.Contains(html, "<p>hi</p>") || !strings.Contains(html, `action="/close"`) || !strings.Contains(html, "Close") {
		t.Fatalf("unexpected modal %s", html)
	}
}

func renderPage(t *testing.T, data PageData) string {
	t.Helper()
	var buf bytes.Buffer
	if err := RenderPage(&buf, data); err != nil {
		t.Fatalf("render page: %v", err)
	}
	return buf.String()
}

// button returns the rendered form for the button labelled text.
func button(t *testing.T, page, text string) string {
	t.Helper()
	idx := strings.Index(page, ">"+text+"<")
	if idx < 0 {
		t.Fatalf("button %q not found", text)
	}
	start := strings.LastIndex(page[:idx], "<button")
	return page[start : idx+1]
}

func TestRenderPageIdle(t *testing.T) {
	page := renderPage(t, PageData{Snapshot: voice.Snapshot{
		Supported:     true,
		Voices:        []speech.Voice{{Name: "Alex", Language: "en-US"}, {Name: "Kyoko", Language: "ja-JP"}},
		SelectedVoice: "Kyoko",
		Message:       "hello",
		Rate:          1,
		Pitch:         1,
	}})

	for _, want := range []string{
		"<h1>My Components Library</h1>",
		`Speech support: <strong id="assistant-supported">Yes</strong>`,
		`Voices available: <strong id="assistant-voices">2</strong>`,
		`<option value="Kyoko" selected>Kyoko — ja-JP</option>`,
		`min="0.5" max="2" step="0.1"`,
		"Student Card",
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q", want)
		}
	}
	if strings.Contains(page, `class="overlay"`) {
		t.Fatal("modal should be absent")
	}
	if strings.Contains(button(t, page, "Tell me about project ✅"), "disabled") {
		t.Fatal("speak should be enabled")
	}
	for _, label := range []string{"Pause ⏸", "Resume ▶️", "Stop ⏹"} {
		if !strings.Contains(button(t, page, label), "disabled") {
			t.Fatalf("%s should be disabled while idle", label)
		}
	}
}

func TestRenderPageSpeakingAndPaused(t *testing.T) {
	speaking := renderPage(t, PageData{Snapshot: voice.Snapshot{Supported: true, Message: "hi", Status: voice.StatusSpeaking, Speaking: true}})
	if strings.Contains(button(t, speaking, "Pause ⏸"), "disabled") || strings.Contains(button(t, speaking, "Stop ⏹"), "disabled") {
		t.Fatal("pause and stop should be enabled while speaking")
	}
	if !strings.Contains(button(t, speaking, "Resume ▶️"), "disabled") {
		t.Fatal("resume should be disabled while speaking")
	}

	paused := renderPage(t, PageData{Snapshot: voice.Snapshot{Supported: true, Message: "hi", Status: voice.StatusPaused, Speaking: true, Paused: true}})
	if !strings.Contains(button(t, paused, "Pause ⏸"), "disabled") {
		t.Fatal("pause should be disabled while paused")
	}
	if strings.Contains(button(t, paused, "Resume ▶️"), "disabled") {
		t.Fatal("resume should be enabled while paused")
	}
}

func TestRenderPageUnsupportedAndModal(t *testing.T) {
	page := renderPage(t, PageData{
		ModalOpen: true,
		Snapshot:  voice.Snapshot{Supported: false, Message: "hi", LastError: voice.MsgUnsupported},
	})
	for _, want := range []string{
		`Speech support: <strong id="assistant-supported">No</strong>`,
		"Loading voices...",
		`<div class="error" id="assistant-error">Speech synthesis is not supported in this browser.</div>`,
		`class="overlay"`,
		"This is my custom modal component.",
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q", want)
		}
	}
	if !strings.Contains(button(t, page, "Tell me about project ✅"), "disabled") {
		t.Fatal("speak should be disabled without speech support")
	}

	blank := renderPage(t, PageData{Snapshot: voice.Snapshot{Supported: true, Message: "   "}})
	if !strings.Contains(button(t, blank, "Tell me about project ✅"), "disabled") {
		t.Fatal("speak should be disabled for a blank message")
	}
}

func TestRenderPageLiveUpdatesKeepDraft(t *testing.T) {
	page := renderPage(t, PageData{Snapshot: voice.Snapshot{Supported: true, Message: "draft"}})

	if !strings.Contains(page, `<div class="error" id="assistant-error" hidden></div>`) {
		t.Fatal("empty error box should be rendered hidden so updates can fill it")
	}
	for _, id := range []string{"assistant-status", "assistant-voices", "assistant-speak"} {
		if !strings.Contains(page, `id="`+id+`"`) {
			t.Fatalf("page missing element %s", id)
		}
	}
	script := page[strings.Index(page, "<script>"):]
	if strings.Contains(script, "reload") {
		t.Fatal("state updates must not reload the page and drop the message draft")
	}
	if strings.Contains(script, `$("message").value =`) {
		t.Fatal("state updates must not overwrite the message draft")
	}
}
