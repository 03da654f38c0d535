// Package pipeline drives the collection run: for every configured source
// it discovers candidate PDFs, downloads and extracts them, classifies the
// text, and persists the records that survive. Sources are processed in
// list order and candidates in discovery order; progress events report a
// monotonically increasing source index followed by one terminal event.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"editalwatch/collector-service/internal/classify"
	"editalwatch/collector-service/internal/dates"
	"editalwatch/collector-service/internal/discover"
	"editalwatch/collector-service/internal/fingerprint"
	"editalwatch/collector-service/internal/model"
	"editalwatch/collector-service/internal/pdftext"
)

// Fetcher is the subset of the HTTP client the pipeline needs.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
	ContentType(ctx context.Context, url string) (string, error)
}

// Extractor converts downloaded PDF bytes into bounded plain text.
type Extractor interface {
	Extract(data []byte, maxPages int) (text string, pages int, err error)
}

// RecordStore is the subset of the store the pipeline writes through.
type RecordStore interface {
	Exists(ctx context.Context, fingerprint string) (bool, error)
	Insert(ctx context.Context, rec model.CallRecord) (inserted bool, err error)
	SetLastRun(ctx context.Context, now time.Time) error
}

// ProgressFunc receives one event per source about to be processed, then
// a terminal event with Done set and the count of newly inserted records.
// The sequence is a deterministic function of the source list and the
// per-source outcomes.
type ProgressFunc func(ev model.Progress)

// Options are the tunable knobs of a run. Zero values fall back to the
// production defaults.
type Options struct {
	MaxPerSource int                 // cap on candidates processed per source
	MaxPages     int                 // pages extracted per PDF
	Pacing       time.Duration       // delay between candidate downloads
	Thresholds   classify.Thresholds // classifier cutoffs
	Now          func() time.Time    // injectable clock
}

func (o *Options) setDefaults() {
	if o.MaxPerSource <= 0 {
		o.MaxPerSource = 40
	}
	if o.MaxPages <= 0 {
		o.MaxPages = pdftext.DefaultMaxPages
	}
	if o.Pacing < 0 {
		o.Pacing = 0
	}
	if o.Thresholds == (classify.Thresholds{}) {
		o.Thresholds = classify.DefaultThresholds()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Collector runs the discovery pipeline over a fixed crawl plan.
type Collector struct {
	sources []model.Source
	fetcher Fetcher
	extract Extractor
	store   RecordStore
	opts    Options
	log     *zap.Logger
}

// New builds a Collector. The source list is the crawl plan and is not
// mutated during runs.
func New(sources []model.Source, f Fetcher, x Extractor, st RecordStore, opts Options, log *zap.Logger) *Collector {
	opts.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{
		sources: sources,
		fetcher: f,
		extract: x,
		store:   st,
		opts:    opts,
		log:     log,
	}
}

// Run processes every source in order and returns the newly inserted
// records. Source and candidate failures are soft: logged and skipped.
// The run fails outright only on context cancellation, in which case the
// records persisted so far are returned alongside the error; every record
// is committed individually, so an aborted run leaves no partial state.
func (c *Collector) Run(ctx context.Context, progress ProgressFunc) ([]model.CallRecord, error) {
	total := len(c.sources)
	var results []model.CallRecord

	for i, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if progress != nil {
			progress(model.Progress{Current: i + 1, Total: total})
		}
		results = append(results, c.collectSource(ctx, src)...)
	}

	if err := c.store.SetLastRun(ctx, c.opts.Now()); err != nil {
		c.log.Warn("failed to record run completion", zap.Error(err))
	}
	if progress != nil {
		progress(model.Progress{Current: total, Total: total, Done: true, New: len(results)})
	}

	c.log.Info("collection run complete",
		zap.Int("sources", total), zap.Int("new", len(results)))
	return results, nil
}

func (c *Collector) collectSource(ctx context.Context, src model.Source) []model.CallRecord {
	log := c.log.With(zap.String("agency", src.Agency))

	page, err := c.fetcher.Get(ctx, src.URL)
	if err != nil {
		log.Warn("listing fetch failed", zap.String("url", src.URL), zap.Error(err))
		return nil
	}

	pdfs, err := discover.DirectPDFLinks(src.URL, page)
	if err != nil {
		log.Warn("listing parse failed", zap.String("url", src.URL), zap.Error(err))
		return nil
	}
	log.Debug("direct pdf links found", zap.Int("count", len(pdfs)))

	if len(pdfs) == 0 {
		candidates, err := discover.KeywordCandidates(src.URL, page, src.Keywords)
		if err != nil {
			log.Warn("listing parse failed", zap.String("url", src.URL), zap.Error(err))
			return nil
		}
		pdfs = c.probeCandidates(ctx, candidates)
		log.Debug("keyword candidates promoted",
			zap.Int("candidates", len(candidates)), zap.Int("pdfs", len(pdfs)))
	}

	var (
		out        []model.CallRecord
		inserted   int
		duplicates int
		rejected   int
		expired    int
		failed     int
	)
	processed := 0
	for _, cand := range pdfs {
		if processed >= c.opts.MaxPerSource {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if cand.URL == "" {
			continue
		}

		rec, outcome := c.processCandidate(ctx, src, cand)
		switch outcome {
		case outcomeFailed:
			failed++
			continue // nothing was downloaded worth pacing for
		case outcomeRejected:
			rejected++
		case outcomeExpired:
			expired++
		case outcomeDuplicate:
			duplicates++
		case outcomeInserted:
			inserted++
			out = append(out, rec)
		}
		processed++
		c.pace(ctx)
	}

	log.Info("source done",
		zap.Int("inserted", inserted),
		zap.Int("duplicates", duplicates),
		zap.Int("rejected", rejected),
		zap.Int("expired", expired),
		zap.Int("failed", failed))
	return out
}

type outcome int

const (
	outcomeFailed outcome = iota // download or extraction failed
	outcomeRejected
	outcomeExpired
	outcomeDuplicate
	outcomeInserted
)

// processCandidate takes one candidate through fetch, extract, metadata
// extraction, classification, the expired-deadline filter, and the
// deduplicating insert. It either fully completes or abandons the
// candidate before any persistence attempt.
func (c *Collector) processCandidate(ctx context.Context, src model.Source, cand model.CandidateLink) (model.CallRecord, outcome) {
	log := c.log.With(zap.String("agency", src.Agency), zap.String("url", cand.URL))

	data, err := c.fetcher.Get(ctx, cand.URL)
	if err != nil {
		log.Debug("candidate download failed", zap.Error(err))
		return model.CallRecord{}, outcomeFailed
	}

	text, _, err := c.extract.Extract(data, c.opts.MaxPages)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Debug("no extractable text", zap.Error(err))
		return model.CallRecord{}, outcomeFailed
	}

	titleGuess := cand.Label
	if titleGuess == "" {
		titleGuess = discover.FilenameFromURL(cand.URL)
	}
	if titleGuess == "" {
		titleGuess = cand.URL
	}
	title := pdftext.FirstTitle(text)
	if title == "" {
		title = titleGuess
	}
	title = pdftext.CleanTitle(title)

	now := c.opts.Now()
	deadline := dates.FindDeadline(text, now)

	if !classify.IsCall(title, text, c.opts.Thresholds) {
		log.Debug("not a call", zap.String("title", title))
		return model.CallRecord{}, outcomeRejected
	}
	// Classified as a call, but already closed.
	if deadline != "" && dates.Expired(deadline, now) {
		log.Debug("deadline expired", zap.String("deadline", deadline))
		return model.CallRecord{}, outcomeExpired
	}

	rec := model.CallRecord{
		Title:       fingerprint.Normalize(title),
		Agency:      src.Agency,
		Deadline:    deadline,
		Amount:      dates.FindAmount(text),
		Link:        cand.URL,
		SourceLabel: src.Agency,
		PublishedAt: dates.FindPublicationDate(text),
		Fingerprint: fingerprint.Make(title, cand.URL),
	}

	if exists, err := c.store.Exists(ctx, rec.Fingerprint); err != nil {
		log.Warn("fingerprint lookup failed", zap.Error(err))
		return model.CallRecord{}, outcomeFailed
	} else if exists {
		return model.CallRecord{}, outcomeDuplicate
	}

	ok, err := c.store.Insert(ctx, rec)
	if err != nil {
		log.Warn("insert failed", zap.Error(err))
		return model.CallRecord{}, outcomeFailed
	}
	if !ok {
		// Lost the race against a uniqueness constraint: same outcome as
		// the pre-check finding a duplicate.
		return model.CallRecord{}, outcomeDuplicate
	}

	log.Info("call stored", zap.String("title", rec.Title), zap.String("deadline", rec.Deadline))
	return rec, outcomeInserted
}

// probeCandidates promotes keyword candidates to PDF candidates by
// probing their content type. Probe failures are swallowed and count
// toward the per-source cap regardless of outcome, which bounds probing
// on failure-heavy sources.
func (c *Collector) probeCandidates(ctx context.Context, candidates []model.CandidateLink) []model.CandidateLink {
	var pdfs []model.CandidateLink
	checked := 0
	for _, cand := range candidates {
		if checked >= c.opts.MaxPerSource {
			break
		}
		if ctx.Err() != nil {
			break
		}
		checked++

		ctype, err := c.fetcher.ContentType(ctx, cand.URL)
		if err != nil {
			ctype = "" // not a PDF as far as we can tell
		}
		if strings.Contains(ctype, "pdf") || strings.HasSuffix(strings.ToLower(cand.URL), ".pdf") {
			pdfs = append(pdfs, cand)
		}
	}
	return pdfs
}

// pace sleeps the configured delay between candidate downloads, a
// politeness measure toward source servers.
func (c *Collector) pace(ctx context.Context) {
	if c.opts.Pacing <= 0 {
		return
	}
	t := time.NewTimer(c.opts.Pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
