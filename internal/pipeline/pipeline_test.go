package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editalwatch/collector-service/internal/model"
)

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

const (
	listURL  = "https://fapx.example.org/editais"
	pdfURL   = "https://fapx.example.org/docs/edital-7.pdf"
	homeURL  = "https://fapx.example.org/"
	callURL  = "https://fapx.example.org/chamadas/abertas"
	otherURL = "https://fapy.example.org/"
)

// fakeFetcher serves canned bodies and content types by URL.
type fakeFetcher struct {
	pages map[string]string
	types map[string]string
	gets  []string
	heads []string
}

func (f *fakeFetcher) Get(_ context.Context, url string) ([]byte, error) {
	f.gets = append(f.gets, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("%s returned 503", url)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) ContentType(_ context.Context, url string) (string, error) {
	f.heads = append(f.heads, url)
	ctype, ok := f.types[url]
	if !ok {
		return "", errors.New("probe refused")
	}
	return ctype, nil
}

// fakeExtractor treats the downloaded bytes as the extracted text.
type fakeExtractor struct{}

func (fakeExtractor) Extract(data []byte, _ int) (string, int, error) {
	if strings.HasPrefix(string(data), "BROKEN") {
		return "", 0, errors.New("malformed pdf")
	}
	return string(data), 1, nil
}

// fakeStore enforces both uniqueness constraints in memory.
type fakeStore struct {
	byFP    map[string]model.CallRecord
	byLink  map[string]bool
	lastRun []time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{byFP: map[string]model.CallRecord{}, byLink: map[string]bool{}}
}

func (s *fakeStore) Exists(_ context.Context, fp string) (bool, error) {
	_, ok := s.byFP[fp]
	return ok, nil
}

func (s *fakeStore) Insert(_ context.Context, rec model.CallRecord) (bool, error) {
	if _, dup := s.byFP[rec.Fingerprint]; dup {
		return false, nil
	}
	if s.byLink[rec.Link] {
		return false, nil
	}
	s.byFP[rec.Fingerprint] = rec
	s.byLink[rec.Link] = true
	return true, nil
}

func (s *fakeStore) SetLastRun(_ context.Context, now time.Time) error {
	s.lastRun = append(s.lastRun, now)
	return nil
}

// docText builds a document that passes every classifier gate and carries
// the given deadline as its only date.
func docText(number, deadline string) string {
	return "EDITAL Nº " + number + " - Programa de Fomento à Pesquisa\n" +
		"Prazo de submissão: " + deadline + "\n" +
		"Valor global: R$ 100.000,00\n" +
		strings.TrimSpace(strings.Repeat("apoio a projetos de pesquisa científica e tecnológica ", 80))
}

func testOptions() Options {
	return Options{Pacing: 0, Now: func() time.Time { return testNow }}
}

func TestRunCollectsAndReportsProgress(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	fetcher.pages[listURL] = `<a href="/docs/edital-7.pdf">Edital 7</a>`
	fetcher.pages[pdfURL] = docText("7/2030", "10/06/2030")
	// otherURL is deliberately absent: its listing fetch soft-fails.

	store := newFakeStore()
	sources := []model.Source{
		{URL: listURL, Agency: "FAPX", Keywords: []string{"edital"}},
		{URL: otherURL, Agency: "FAPY", Keywords: []string{"edital"}},
	}

	var events []model.Progress
	c := New(sources, fetcher, fakeExtractor{}, store, testOptions(), nil)
	records, err := c.Run(context.Background(), func(ev model.Progress) { events = append(events, ev) })
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, pdfURL, records[0].Link)
	assert.Equal(t, "FAPX", records[0].Agency)
	assert.Equal(t, "10/06/2030", records[0].Deadline)
	assert.Equal(t, "R$ 100.000,00", records[0].Amount)
	assert.NotEmpty(t, records[0].Fingerprint)

	assert.Equal(t, []model.Progress{
		{Current: 1, Total: 2},
		{Current: 2, Total: 2},
		{Current: 2, Total: 2, Done: true, New: 1},
	}, events)

	// Run completion is recorded even though one source failed.
	assert.Equal(t, []time.Time{testNow}, store.lastRun)
}

func TestRunSecondPassInsertsNothing(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	fetcher.pages[listURL] = `<a href="/docs/edital-7.pdf">Edital 7</a>`
	fetcher.pages[pdfURL] = docText("7/2030", "10/06/2030")

	store := newFakeStore()
	sources := []model.Source{{URL: listURL, Agency: "FAPX"}}
	c := New(sources, fetcher, fakeExtractor{}, store, testOptions(), nil)

	first, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, second, "duplicates are silently skipped")
	assert.Len(t, store.byFP, 1)
}

func TestRunProbeFallbackPromotesKeywordLink(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}, types: map[string]string{}}
	fetcher.pages[homeURL] = `<div id="content"><a href="/chamadas/abertas">Chamadas abertas</a></div>`
	fetcher.pages[callURL] = docText("3/2031", "01/02/2031")
	fetcher.types[callURL] = "application/pdf; charset=binary"

	store := newFakeStore()
	sources := []model.Source{{URL: homeURL, Agency: "FAPX", Keywords: []string{"chamada"}}}
	c := New(sources, fetcher, fakeExtractor{}, store, testOptions(), nil)

	records, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{callURL}, fetcher.heads)
}

func TestRunProbeFailureCountsTowardCap(t *testing.T) {
	// Three keyword candidates, cap of two: the failing probe consumes a
	// slot, so the third candidate is never probed.
	fetcher := &fakeFetcher{pages: map[string]string{}, types: map[string]string{}}
	fetcher.pages[homeURL] = `<div id="content">` +
		`<a href="/chamadas/a">chamada a</a>` +
		`<a href="/chamadas/b">chamada b</a>` +
		`<a href="/chamadas/c">chamada c</a></div>`

	store := newFakeStore()
	opts := testOptions()
	opts.MaxPerSource = 2
	sources := []model.Source{{URL: homeURL, Agency: "FAPX", Keywords: []string{"chamada"}}}
	c := New(sources, fetcher, fakeExtractor{}, store, opts, nil)

	_, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, fetcher.heads, 2)
}

func TestRunSkipsExpiredDeadline(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	fetcher.pages[listURL] = `<a href="/docs/edital-7.pdf">Edital vencido</a>`
	fetcher.pages[pdfURL] = docText("1/2020", "10/01/2020")

	store := newFakeStore()
	sources := []model.Source{{URL: listURL, Agency: "FAPX"}}
	c := New(sources, fetcher, fakeExtractor{}, store, testOptions(), nil)

	records, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, store.byFP)
}

func TestRunSkipsUnclassifiableAndBrokenDocuments(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	fetcher.pages[listURL] = `<a href="/a.pdf">A</a><a href="/b.pdf">B</a>`
	fetcher.pages["https://fapx.example.org/a.pdf"] = "BROKEN bytes"
	fetcher.pages["https://fapx.example.org/b.pdf"] = "Comunicado curto sem conteúdo de edital."

	store := newFakeStore()
	sources := []model.Source{{URL: listURL, Agency: "FAPX"}}
	c := New(sources, fetcher, fakeExtractor{}, store, testOptions(), nil)

	records, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunHonorsPerSourceCap(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	fetcher.pages[listURL] = `<a href="/a.pdf">A</a><a href="/b.pdf">B</a><a href="/c.pdf">C</a>`
	fetcher.pages["https://fapx.example.org/a.pdf"] = docText("1/2030", "10/06/2030")
	fetcher.pages["https://fapx.example.org/b.pdf"] = docText("2/2030", "11/06/2030")
	fetcher.pages["https://fapx.example.org/c.pdf"] = docText("3/2030", "12/06/2030")

	store := newFakeStore()
	opts := testOptions()
	opts.MaxPerSource = 2
	sources := []model.Source{{URL: listURL, Agency: "FAPX"}}
	c := New(sources, fetcher, fakeExtractor{}, store, opts, nil)

	records, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRunAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newFakeStore()
	sources := []model.Source{{URL: listURL, Agency: "FAPX"}}
	c := New(sources, &fakeFetcher{}, fakeExtractor{}, store, testOptions(), nil)

	records, err := c.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
	assert.Empty(t, store.lastRun, "an aborted run records no completion")
}
