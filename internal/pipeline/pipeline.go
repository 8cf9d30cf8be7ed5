// Package pipeline wires the processing stages together: normalize,
// filter, extract, score, deduplicate, categorize, persist. Emails for
// one user run through the analysis stages on a worker pool, then are
// applied to the ledger serially in timestamp order so deduplication
// and cadence detection see a consistent history. Different users are
// independent and run in parallel.
package pipeline

import (
	"context"
	"errors"
	"sort"

	"fjacquet/mail-ledger/internal/categorizer"
	"fjacquet/mail-ledger/internal/dedup"
	"fjacquet/mail-ledger/internal/extractor"
	"fjacquet/mail-ledger/internal/filter"
	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/normalizer"
	"fjacquet/mail-ledger/internal/pipeerror"
	"fjacquet/mail-ledger/internal/scorer"
	"fjacquet/mail-ledger/internal/source"
	"fjacquet/mail-ledger/internal/store"

	"golang.org/x/sync/errgroup"
)

// UserReport counts outcomes for one user's run. SkipReasons breaks
// Skipped down by the filter or extraction reason that dropped each
// email.
type UserReport struct {
	Processed   int // emails pulled from the source
	Skipped     int // filtered out or nothing extractable
	Accepted    int
	NeedsReview int
	Duplicates  int
	Replayed    int // records already present from an earlier run
	Errors      int // emails that failed a stage
	SkipReasons map[string]int
}

func (ur *UserReport) skip(reason string) {
	ur.Skipped++
	if ur.SkipReasons == nil {
		ur.SkipReasons = make(map[string]int)
	}
	ur.SkipReasons[reason]++
}

// Report is the outcome of a full run across users.
type Report struct {
	Users map[string]*UserReport
}

// Total sums the per-user reports.
func (r *Report) Total() UserReport {
	var total UserReport
	for _, ur := range r.Users {
		total.Processed += ur.Processed
		total.Skipped += ur.Skipped
		total.Accepted += ur.Accepted
		total.NeedsReview += ur.NeedsReview
		total.Duplicates += ur.Duplicates
		total.Replayed += ur.Replayed
		total.Errors += ur.Errors
		for reason, n := range ur.SkipReasons {
			if total.SkipReasons == nil {
				total.SkipReasons = make(map[string]int)
			}
			total.SkipReasons[reason] += n
		}
	}
	return total
}

// Options tune the pipeline run.
type Options struct {
	// Workers bounds the analysis-stage concurrency per user.
	Workers int
}

// Pipeline runs emails end to end against the ledger.
type Pipeline struct {
	source      source.EmailSource
	normalizer  *normalizer.Normalizer
	filter      *filter.Filter
	extractor   *extractor.Extractor
	scorer      *scorer.Scorer
	dedup       *dedup.Deduplicator
	categorizer *categorizer.Categorizer
	ledger      store.Ledger
	opts        Options
	logger      logging.Logger
}

// New assembles a pipeline from its stages.
func New(
	src source.EmailSource,
	norm *normalizer.Normalizer,
	flt *filter.Filter,
	ext *extractor.Extractor,
	scr *scorer.Scorer,
	ddp *dedup.Deduplicator,
	cat *categorizer.Categorizer,
	ledger store.Ledger,
	opts Options,
	logger logging.Logger,
) *Pipeline {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Pipeline{
		source:      src,
		normalizer:  norm,
		filter:      flt,
		extractor:   ext,
		scorer:      scr,
		dedup:       ddp,
		categorizer: cat,
		ledger:      ledger,
		opts:        opts,
		logger:      logger,
	}
}

// Run processes every user's mailbox. Users run in parallel; a failing
// user aborts the run and the error surfaces, while completed users
// keep their ledger writes.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	users, err := p.source.Users(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Users: make(map[string]*UserReport, len(users))}
	for _, user := range users {
		report.Users[user] = &UserReport{}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, user := range users {
		user := user
		g.Go(func() error {
			return p.runUser(gctx, user, report.Users[user])
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if err := p.categorizer.Flush(); err != nil {
		p.logger.WithError(err).Warn("failed to persist learned merchant mappings")
	}
	return report, nil
}

// RunUser processes a single user's mailbox.
func (p *Pipeline) RunUser(ctx context.Context, user string) (*UserReport, error) {
	ur := &UserReport{}
	if err := p.runUser(ctx, user, ur); err != nil {
		return ur, err
	}
	if err := p.categorizer.Flush(); err != nil {
		p.logger.WithError(err).Warn("failed to persist learned merchant mappings")
	}
	return ur, nil
}

// emailResult carries one email through the concurrent analysis phase
// into the serial apply phase.
type emailResult struct {
	raw        models.RawEmail
	email      models.NormalizedEmail
	candidates []models.ScoredCandidate
	skipReason string
	err        error
}

func (p *Pipeline) runUser(ctx context.Context, user string, ur *UserReport) error {
	marker, err := p.ledger.LastProcessed(ctx, user)
	if err != nil {
		return err
	}

	emails, err := p.source.Emails(ctx, user, marker)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return nil
	}

	log := p.logger.WithField(logging.FieldUser, user)
	log.Info("processing mailbox",
		logging.Field{Key: logging.FieldCount, Value: len(emails)})

	results := make([]emailResult, len(emails))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, raw := range emails {
		i, raw := i, raw
		g.Go(func() error {
			results[i] = p.analyze(gctx, raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Apply in source order so earlier emails are on the ledger before
	// later ones are checked against it.
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.apply(ctx, user, res, ur, log)
		if err := p.ledger.SetLastProcessed(ctx, user, res.raw.InternalDate); err != nil {
			return err
		}
	}
	return nil
}

// analyze runs the stages that need no ledger: normalize, filter,
// extract, score. Safe to call concurrently.
func (p *Pipeline) analyze(ctx context.Context, raw models.RawEmail) emailResult {
	res := emailResult{raw: raw}

	email, err := p.normalizer.Normalize(raw)
	if err != nil {
		res.err = err
		return res
	}
	res.email = email

	decision := p.filter.Check(email)
	if !decision.IsCandidate {
		res.skipReason = decision.Reason
		return res
	}

	candidates, err := p.extractor.Extract(ctx, email)
	if err != nil {
		res.err = err
		return res
	}

	ordered := make([]models.ScoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		ordered = append(ordered, p.scorer.Score(email, cand))
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})
	res.candidates = ordered
	return res
}

// apply writes one analyzed email's outcome to the ledger. Runs
// serially per user.
func (p *Pipeline) apply(ctx context.Context, user string, res emailResult, ur *UserReport, log logging.Logger) {
	ur.Processed++

	if res.err != nil {
		var ambiguous *pipeerror.ExtractionAmbiguousError
		if errors.As(res.err, &ambiguous) {
			ur.skip("no-extraction")
			log.Debug("nothing extractable",
				logging.Field{Key: logging.FieldEmailID, Value: res.raw.ID},
				logging.Field{Key: logging.FieldReason, Value: ambiguous.Reason})
			return
		}
		ur.Errors++
		log.WithError(res.err).Warn("email failed",
			logging.Field{Key: logging.FieldEmailID, Value: res.raw.ID})
		return
	}

	if res.skipReason != "" {
		ur.skip(res.skipReason)
		log.Debug("email filtered out",
			logging.Field{Key: logging.FieldEmailID, Value: res.raw.ID},
			logging.Field{Key: logging.FieldReason, Value: res.skipReason})
		return
	}

	for _, sc := range res.candidates {
		if err := p.applyCandidate(ctx, user, sc, ur, log); err != nil {
			ur.Errors++
			log.WithError(err).Error("failed to persist candidate",
				logging.Field{Key: logging.FieldEmailID, Value: sc.SourceEmailID})
		}
	}
}

func (p *Pipeline) applyCandidate(ctx context.Context, user string, sc models.ScoredCandidate, ur *UserReport, log logging.Logger) error {
	rec := models.NewTransactionRecord(user, sc)

	// Dedup runs before threshold routing: a low-confidence duplicate
	// must still link to its original, or a later review accept would
	// double-count the spend.
	verdict, err := p.dedup.Check(ctx, user, sc)
	if err != nil {
		return err
	}

	switch verdict.Verdict {
	case dedup.Duplicate:
		rec.Status = models.StatusDuplicate
		rec.DuplicateOf = verdict.Original.ID
		return p.insert(ctx, rec, ur, &ur.Duplicates, log)
	case dedup.Conflict:
		conflictErr := dedup.ConflictError(sc, verdict.Original)
		log.WithError(conflictErr).Warn("conflicting near-duplicate",
			logging.Field{Key: logging.FieldEmailID, Value: sc.SourceEmailID})
		rec.Status = models.StatusNeedsReview
		rec.DuplicateOf = verdict.Original.ID
		return p.insert(ctx, rec, ur, &ur.NeedsReview, log)
	}

	if !p.scorer.Accept(sc) {
		rec.Status = models.StatusNeedsReview
		return p.insert(ctx, rec, ur, &ur.NeedsReview, log)
	}

	rec.Status = models.StatusAccepted
	rec, err = p.categorizer.Categorize(ctx, rec)
	if err != nil {
		return err
	}
	return p.insert(ctx, rec, ur, &ur.Accepted, log)
}

// insert writes the record, counting replays separately so a re-run of
// the same mailbox shows up as replays rather than new records.
func (p *Pipeline) insert(ctx context.Context, rec models.TransactionRecord, ur *UserReport, counter *int, log logging.Logger) error {
	inserted, err := p.ledger.Insert(ctx, rec)
	if err != nil {
		return err
	}
	if !inserted {
		ur.Replayed++
		return nil
	}
	*counter++
	log.Debug("record stored",
		logging.Field{Key: logging.FieldRecordID, Value: rec.ID},
		logging.Field{Key: logging.FieldStatus, Value: string(rec.Status)},
		logging.Field{Key: logging.FieldCategory, Value: rec.Category})
	return nil
}
