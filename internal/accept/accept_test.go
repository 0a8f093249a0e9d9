package accept

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acceptURL = "https://telaviv.kdmid.ru/queue/orderinfo.aspx?id=77014&cd=A1B2C3&ems=EM42"

func mailBody(url string) string {
	return `<html><body>Для подтверждения перейдите <a href="` + url + `">по ссылке</a></body></html>`
}

func TestExtractFirstHref(t *testing.T) {
	url, err := ExtractFirstHref(mailBody(acceptURL))
	require.NoError(t, err)
	assert.Equal(t, acceptURL, url)

	first := `<a href="https://one.example">1</a><a href="https://two.example">2</a>`
	url, err = ExtractFirstHref(first)
	require.NoError(t, err)
	assert.Equal(t, "https://one.example", url)

	_, err = ExtractFirstHref("plain text, no markup")
	assert.ErrorIs(t, err, ErrNoLink)
}

func TestParseAcceptParams(t *testing.T) {
	p, err := ParseAcceptParams(acceptURL)
	require.NoError(t, err)
	assert.Equal(t, Params{OrderNumber: 77014, SaveCode: "A1B2C3", EMS: "EM42"}, p)

	_, err = ParseAcceptParams("https://telaviv.kdmid.ru/queue/orderinfo.aspx?id=77014&cd=A1B2C3")
	assert.Error(t, err)

	_, err = ParseAcceptParams("https://telaviv.kdmid.ru/queue/orderinfo.aspx?id=abc&cd=X&ems=Y")
	assert.Error(t, err)
}

type memSource struct {
	msgs  []Message
	err   error
	acked []string
}

func (s *memSource) Messages(context.Context) ([]Message, error) {
	return s.msgs, s.err
}

func (s *memSource) Ack(_ context.Context, id string) error {
	s.acked = append(s.acked, id)
	return nil
}

type stubFlow struct {
	errs map[string]error
	urls []string
}

func (f *stubFlow) AcceptByURL(_ context.Context, url string) error {
	f.urls = append(f.urls, url)
	return f.errs[url]
}

type stubMarker struct {
	marked []int64
	err    error
}

func (m *stubMarker) SetAccepted(_ context.Context, orderNumber int64, accepted bool) error {
	if m.err != nil {
		return m.err
	}
	m.marked = append(m.marked, orderNumber)
	return nil
}

func testAcceptor(src MessageSource, flow Flow, marker OrderMarker) *Acceptor {
	return &Acceptor{
		Source: src,
		Flow:   flow,
		Orders: marker,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRunAcceptsAndAcks(t *testing.T) {
	src := &memSource{msgs: []Message{{ID: "m1", Body: mailBody(acceptURL)}}}
	flow := &stubFlow{}
	marker := &stubMarker{}

	n, err := testAcceptor(src, flow, marker).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{acceptURL}, flow.urls)
	assert.Equal(t, []int64{77014}, marker.marked)
	assert.Equal(t, []string{"m1"}, src.acked)
}

func TestRunSkipsMalformedMessages(t *testing.T) {
	src := &memSource{msgs: []Message{
		{ID: "bad1", Body: "no link here"},
		{ID: "bad2", Body: mailBody("https://telaviv.kdmid.ru/queue/orderinfo.aspx?id=1")},
		{ID: "good", Body: mailBody(acceptURL)},
	}}
	flow := &stubFlow{}
	marker := &stubMarker{}

	n, err := testAcceptor(src, flow, marker).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"good"}, src.acked)
}

func TestRunLeavesFailedFlowUnacked(t *testing.T) {
	src := &memSource{msgs: []Message{{ID: "m1", Body: mailBody(acceptURL)}}}
	flow := &stubFlow{errs: map[string]error{acceptURL: errors.New("login rejected")}}
	marker := &stubMarker{}

	n, err := testAcceptor(src, flow, marker).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, marker.marked)
	assert.Empty(t, src.acked)
}

func TestRunPropagatesSourceError(t *testing.T) {
	src := &memSource{err: errors.New("mailbox gone")}
	_, err := testAcceptor(src, &stubFlow{}, &stubMarker{}).Run(context.Background())
	require.ErrorIs(t, err, src.err)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.html"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.html"), []byte("first"), 0o644))

	src := &DirSource{Dir: dir}
	msgs, err := src.Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{ID: "a.html", Body: "first"}, msgs[0])
	assert.Equal(t, Message{ID: "b.html", Body: "second"}, msgs[1])

	require.NoError(t, src.Ack(context.Background(), "a.html"))
	msgs, err = src.Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "b.html", msgs[0].ID)
}

func TestDirSourceMissingDir(t *testing.T) {
	src := &DirSource{Dir: filepath.Join(t.TempDir(), "nope")}
	msgs, err := src.Messages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
