package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/HmRandomGuy/T-V-B/domain"
	"github.com/HmRandomGuy/T-V-B/repository"
)

type apiCall struct {
	method string
	values url.Values
}

// fakeBotAPI answers just enough of the Bot API surface for the gateway:
// getMe for the handshake, one canned getUpdates batch, and generic OK
// responses for everything else while recording each call.
type fakeBotAPI struct {
	mu          sync.Mutex
	updates     string
	served      bool
	failUpdates bool
	fileBody    string
	calls       []apiCall
}

func (f *fakeBotAPI) handler(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/") {
		w.Write([]byte(f.fileBody))
		return
	}

	method := path.Base(r.URL.Path)
	values := url.Values{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.ParseMultipartForm(32 << 20)
		for k, v := range r.MultipartForm.Value {
			values[k] = v
		}
		values.Set("__files", strconv.Itoa(len(r.MultipartForm.File)))
	} else {
		r.ParseForm()
		values = r.PostForm
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, values: values})
	f.mu.Unlock()

	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"tvb","username":"tvb_bot"}}`)
	case "getUpdates":
		if f.failUpdates {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"ok":false,"error_code":500,"description":"boom"}`)
			return
		}
		f.mu.Lock()
		body := f.updates
		if f.served || body == "" {
			body = "[]"
		}
		f.served = true
		f.mu.Unlock()
		fmt.Fprintf(w, `{"ok":true,"result":%s}`, body)
	case "getFile":
		fmt.Fprint(w, `{"ok":true,"result":{"file_id":"f1","file_path":"documents/a.txt"}}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}
}

func (f *fakeBotAPI) find(method string) (apiCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.method == method {
			return c, true
		}
	}
	return apiCall{}, false
}

func (f *fakeBotAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func newTestGateway(t *testing.T, api *fakeBotAPI) (*Gateway, *repository.MemoryPreferenceStore) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(server.Close)

	prefs := repository.NewMemoryPreferenceStore()
	gateway, err := NewGateway(Config{
		BotToken:           "test-token",
		PollTimeout:        1,
		LargeTextThreshold: 50,
		APIEndpoint:        server.URL + "/bot%s/%s",
		FileEndpoint:       server.URL + "/file/bot%s/%s",
	}, prefs, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return gateway, prefs
}

func TestPollTranslatesTextMessage(t *testing.T) {
	api := &fakeBotAPI{updates: `[
		{"update_id":10,"message":{"message_id":7,"date":1700000000,
			"chat":{"id":42,"type":"private"},"text":"hello world"}}
	]`}
	gateway, _ := newTestGateway(t, api)

	requests, err := gateway.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	msg := requests[0]
	if msg.ChatID != 42 || msg.MessageID != 7 || msg.Text != "hello world" {
		t.Errorf("unexpected request %+v", msg)
	}
	if msg.FromDocument {
		t.Error("plain message should not be marked as document-sourced")
	}

	// The next poll must acknowledge the consumed batch.
	if _, err := gateway.Poll(context.Background()); err != nil {
		t.Fatalf("second Poll: %v", err)
	}
	var offsets []string
	api.mu.Lock()
	for _, c := range api.calls {
		if c.method == "getUpdates" {
			offsets = append(offsets, c.values.Get("offset"))
		}
	}
	api.mu.Unlock()
	if len(offsets) != 2 || offsets[1] != "11" {
		t.Errorf("expected second getUpdates with offset 11, got %v", offsets)
	}
}

func TestPollHandlesSettingsCommand(t *testing.T) {
	api := &fakeBotAPI{updates: `[
		{"update_id":1,"message":{"message_id":2,"date":1700000000,
			"chat":{"id":42,"type":"private"},"text":"/settings",
			"entities":[{"type":"bot_command","offset":0,"length":9}]}}
	]`}
	gateway, _ := newTestGateway(t, api)

	requests, err := gateway.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("commands must not reach the pipeline, got %d requests", len(requests))
	}

	call, ok := api.find("sendMessage")
	if !ok {
		t.Fatal("expected a sendMessage reply to /settings")
	}
	markup := call.values.Get("reply_markup")
	if !strings.Contains(markup, "open:lang") || !strings.Contains(markup, "open:speed") {
		t.Errorf("dashboard markup missing settings buttons: %s", markup)
	}
}

func TestPollCallbackUpdatesPreferences(t *testing.T) {
	api := &fakeBotAPI{updates: `[
		{"update_id":1,"callback_query":{"id":"cb1","data":"set:lang:en",
			"from":{"id":9,"is_bot":false,"first_name":"u"},
			"message":{"message_id":3,"date":1700000000,"chat":{"id":42,"type":"private"}}}}
	]`}
	gateway, prefs := newTestGateway(t, api)

	requests, err := gateway.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("callbacks must not reach the pipeline, got %d requests", len(requests))
	}

	if got := prefs.Get(42).LanguageKey; got != "en" {
		t.Errorf("expected language preference en, got %q", got)
	}
	if _, ok := api.find("answerCallbackQuery"); !ok {
		t.Error("expected the callback query to be answered")
	}
	if _, ok := api.find("editMessageText"); !ok {
		t.Error("expected the dashboard message to be refreshed")
	}
}

func TestPollCallbackRejectsUnknownKey(t *testing.T) {
	api := &fakeBotAPI{updates: `[
		{"update_id":1,"callback_query":{"id":"cb1","data":"set:lang:zz",
			"from":{"id":9,"is_bot":false,"first_name":"u"},
			"message":{"message_id":3,"date":1700000000,"chat":{"id":42,"type":"private"}}}}
	]`}
	gateway, prefs := newTestGateway(t, api)

	if _, err := gateway.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := prefs.Get(42).LanguageKey; got != domain.DefaultLanguageKey {
		t.Errorf("unknown key must not change preferences, got %q", got)
	}
}

func TestPollDownloadsTextDocument(t *testing.T) {
	api := &fakeBotAPI{
		fileBody: "Hello from a file.",
		updates: `[
			{"update_id":1,"message":{"message_id":4,"date":1700000000,
				"chat":{"id":42,"type":"private"},
				"document":{"file_id":"f1","file_name":"a.txt","mime_type":"text/plain"}}}
		]`,
	}
	gateway, _ := newTestGateway(t, api)

	requests, err := gateway.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	if requests[0].Text != "Hello from a file." {
		t.Errorf("unexpected document text %q", requests[0].Text)
	}
	if !requests[0].FromDocument {
		t.Error("document request must be marked FromDocument")
	}
}

func TestPollLargeDocumentSendsProgressNotice(t *testing.T) {
	api := &fakeBotAPI{
		fileBody: strings.Repeat("Long document text. ", 10), // past the 50-char test threshold
		updates: `[
			{"update_id":1,"message":{"message_id":4,"date":1700000000,
				"chat":{"id":42,"type":"private"},
				"document":{"file_id":"f1","file_name":"big.txt","mime_type":"text/plain"}}}
		]`,
	}
	gateway, _ := newTestGateway(t, api)

	requests, err := gateway.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}

	call, ok := api.find("sendMessage")
	if !ok {
		t.Fatal("expected a progress notice for the large document")
	}
	if got := call.values.Get("text"); !strings.Contains(got, "Processing in chunks") {
		t.Errorf("unexpected notice %q", got)
	}
}

func TestPollRejectsNonTextDocument(t *testing.T) {
	api := &fakeBotAPI{updates: `[
		{"update_id":1,"message":{"message_id":4,"date":1700000000,
			"chat":{"id":42,"type":"private"},
			"document":{"file_id":"f1","file_name":"a.pdf","mime_type":"application/pdf"}}}
	]`}
	gateway, _ := newTestGateway(t, api)

	requests, err := gateway.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("non-text documents must be dropped, got %d requests", len(requests))
	}
	if _, ok := api.find("sendMessage"); !ok {
		t.Error("expected a rejection reply for the unsupported document")
	}
	if api.count("getFile") != 0 {
		t.Error("unsupported documents must not be downloaded")
	}
}

func TestPollDropsUnsupportedMessage(t *testing.T) {
	api := &fakeBotAPI{updates: `[
		{"update_id":1,"message":{"message_id":4,"date":1700000000,
			"chat":{"id":42,"type":"private"},
			"sticker":{"file_id":"s1","width":1,"height":1,"is_animated":false,"is_video":false}}}
	]`}
	gateway, _ := newTestGateway(t, api)

	requests, err := gateway.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("stickers must be dropped, got %d requests", len(requests))
	}
}

func TestPollSurfacesTransportError(t *testing.T) {
	api := &fakeBotAPI{failUpdates: true}
	gateway, _ := newTestGateway(t, api)

	if _, err := gateway.Poll(context.Background()); err == nil {
		t.Fatal("expected Poll to surface the transport error")
	}
}

func TestSendVoice(t *testing.T) {
	api := &fakeBotAPI{}
	gateway, _ := newTestGateway(t, api)

	note := &domain.VoiceNote{
		Data:     []byte("OGGDATA"),
		MIMEType: "audio/ogg",
		Duration: 3 * time.Second,
		Caption:  "🗣️ Spoken in Hindi at 🚶 1x (Normal)",
	}
	if err := gateway.SendVoice(context.Background(), 42, note); err != nil {
		t.Fatalf("SendVoice: %v", err)
	}

	call, ok := api.find("sendVoice")
	if !ok {
		t.Fatal("expected a sendVoice call")
	}
	if call.values.Get("__files") != "1" {
		t.Error("expected the voice note to be uploaded as a file")
	}
	if got := call.values.Get("caption"); !strings.Contains(got, "Hindi") {
		t.Errorf("unexpected caption %q", got)
	}
	if got := call.values.Get("duration"); got != "3" {
		t.Errorf("expected duration 3, got %q", got)
	}
}

func TestNotifyRecording(t *testing.T) {
	api := &fakeBotAPI{}
	gateway, _ := newTestGateway(t, api)

	gateway.NotifyRecording(42)

	call, ok := api.find("sendChatAction")
	if !ok {
		t.Fatal("expected a sendChatAction call")
	}
	if got := call.values.Get("action"); got != "record_voice" {
		t.Errorf("expected record_voice action, got %q", got)
	}
}
