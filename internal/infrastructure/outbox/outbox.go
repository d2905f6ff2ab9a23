// Package outbox is the development preview transport: messages are rendered
// to a standalone HTML page and stored where a developer can open them,
// instead of being delivered.
package outbox

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/pkg/id"
)

// Store keeps a rendered preview and returns the URL it can be inspected at.
type Store interface {
	Save(ctx context.Context, id string, page []byte) (string, error)
}

// Transport satisfies smtp.Transport by rendering into a Store.
type Transport struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Transport {
	return &Transport{store: store, now: time.Now}
}

// Verify always succeeds; the outbox has nothing to connect to.
func (t *Transport) Verify(context.Context) error { return nil }

func (t *Transport) Send(ctx context.Context, msg domain.Message) (domain.Receipt, error) {
	var buf bytes.Buffer
	err := pageTmpl.Execute(&buf, struct {
		domain.Message
		Date string
		Body template.HTML
	}{
		Message: msg,
		Date:    t.now().UTC().Format(time.RFC1123Z),
		// Message HTML is composed by this service, never by a caller.
		Body: template.HTML(msg.HTML),
	})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("render preview: %w", err)
	}
	url, err := t.store.Save(ctx, id.New(), buf.Bytes())
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("save preview: %w", err)
	}
	return domain.Receipt{PreviewURL: url}, nil
}

var pageTmpl = template.Must(template.New("preview").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body>
<table>
<tr><th align="left">From</th><td>{{.From}}</td></tr>
<tr><th align="left">To</th><td>{{.To}}</td></tr>
<tr><th align="left">Subject</th><td>{{.Subject}}</td></tr>
<tr><th align="left">Date</th><td>{{.Date}}</td></tr>
</table>
<hr>
{{if .Body}}{{.Body}}{{else}}<pre>{{.Text}}</pre>{{end}}
<hr>
<pre>{{.Text}}</pre>
</body></html>
`))

// MemoryStore keeps previews in process memory, served by the relay itself.
type MemoryStore struct {
	mu      sync.RWMutex
	pages   map[string][]byte
	baseURL string
}

// NewMemoryStore returns a store whose URLs point at baseURL/api/email/preview/{id}.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{pages: make(map[string][]byte), baseURL: baseURL}
}

func (s *MemoryStore) Save(_ context.Context, id string, page []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[id] = page
	return s.baseURL + "/api/email/preview/" + id, nil
}

func (s *MemoryStore) Get(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[id]
	return p, ok
}
