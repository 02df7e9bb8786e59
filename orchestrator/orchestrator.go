package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"leadgen/logging"
	"leadgen/merger"
	"leadgen/plan"
	"leadgen/repository"
	"leadgen/search"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Stage string

const (
	StagePlanning      Stage = "PLANNING"
	StageExecutingWeb  Stage = "EXECUTING_WEB"
	StageExecutingMaps Stage = "EXECUTING_MAPS"
	StageMerging       Stage = "MERGING"
	StageDone          Stage = "DONE"
)

var (
	ErrNoSourceSelected = plan.ErrNoSourceSelected
	ErrRunPanicked      = errors.New("campaign run panicked")
	ErrMissingBackend   = errors.New("no backend configured for a selected source")
)

const storeTimeout = 10 * time.Second

type Progress struct {
	Stage     Stage
	City      string
	Completed int
	Total     int
}

// Uploader copies an exported file to remote storage
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

type Config struct {
	ResultsDir         string
	RequestTimeout     time.Duration
	CheckpointInterval int

	// CheckpointDir defaults to ResultsDir
	CheckpointDir string

	// Exclusions is appended to every web query
	Exclusions string
}

type Report struct {
	CampaignID          string                    `json:"campaign_id"`
	Status              repository.CampaignStatus `json:"status"`
	Estimate            Estimate                  `json:"estimate"`
	WebCalls            int                       `json:"web_calls"`
	MapsCalls           int                       `json:"maps_calls"`
	WebResults          int                       `json:"web_results"`
	MapsResults         int                       `json:"maps_results"`
	Flushed             int                       `json:"flushed"`
	Total               int                       `json:"merged_total"`
	Unique              int                       `json:"merged_unique"`
	Duplicates          int                       `json:"merged_duplicates"`
	OutputFile          string                    `json:"output_file,omitempty"`
	UploadedTo          string                    `json:"uploaded_to,omitempty"`
	RelatedSearchesFile string                    `json:"related_searches_file,omitempty"`
	WebCheckpoint       string                    `json:"web_checkpoint,omitempty"`
	MapsCheckpoint      string                    `json:"maps_checkpoint,omitempty"`
	SupplementedCities  []string                  `json:"supplemented_cities,omitempty"`
	StorageOnline       bool                      `json:"storage_online"`
	StartedAt           time.Time                 `json:"started_at"`
	FinishedAt          time.Time                 `json:"finished_at"`
}

// APICalls is the number of backend calls the searchers counted
func (r *Report) APICalls() int {
	return r.WebCalls + r.MapsCalls
}

type Orchestrator struct {
	web        search.WebBackend
	maps       search.MapsBackend
	store      repository.CampaignStore
	uploader   Uploader
	config     Config
	logger     *zap.Logger
	onProgress func(Progress)
	now        func() time.Time

	mu    sync.RWMutex
	stage Stage
}

type Option func(*Orchestrator)

func WithStore(store repository.CampaignStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

func WithUploader(u Uploader) Option {
	return func(o *Orchestrator) { o.uploader = u }
}

func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

func New(web search.WebBackend, maps search.MapsBackend, logger *zap.Logger, config Config, opts ...Option) *Orchestrator {
	if config.ResultsDir == "" {
		config.ResultsDir = "results"
	}
	if config.CheckpointDir == "" {
		config.CheckpointDir = config.ResultsDir
	}
	o := &Orchestrator{
		web:    web,
		maps:   maps,
		config: config,
		logger: logger,
		now:    time.Now,
		stage:  StagePlanning,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Store returns the configured campaign store, or nil
func (o *Orchestrator) Store() repository.CampaignStore {
	return o.store
}

// Stage returns the stage of the current or last run
func (o *Orchestrator) Stage() Stage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stage
}

func (o *Orchestrator) setStage(s Stage) {
	o.mu.Lock()
	o.stage = s
	o.mu.Unlock()
}

// StorageOnline reports whether a campaign store is configured and reachable
func (o *Orchestrator) StorageOnline(ctx context.Context) bool {
	if o.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := o.store.Ping(ctx); err != nil {
		o.logger.Warn("Campaign store offline, results stay local", zap.Error(err))
		return false
	}
	return true
}

// run carries the state of one campaign execution
type run struct {
	plan     *plan.Plan
	id       string
	online   bool
	created  bool
	web      *search.WebSearcher
	maps     *search.MapsSearcher
	flusher  *merger.Flusher
	webCount map[string]int
	report   *Report
	logger   *zap.Logger

	// unsaved holds flushed records whose checkpoint write failed
	unsaved map[repository.Source][]repository.ResultRecord
}

// Run executes a plan. The returned report is non-nil for every run that
// passed validation, including interrupted and failed ones.
func (o *Orchestrator) Run(ctx context.Context, p *plan.Plan) (*Report, error) {
	o.setStage(StagePlanning)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.SearchType.Web() && o.web == nil || p.SearchType.Maps() && o.maps == nil {
		return nil, ErrMissingBackend
	}

	r := &run{
		plan:     p,
		online:   o.StorageOnline(ctx),
		webCount: make(map[string]int),
		unsaved:  make(map[repository.Source][]repository.ResultRecord),
		report: &Report{
			Estimate:  EstimateCalls(p),
			StartedAt: o.now(),
		},
	}
	r.id = o.createCampaign(ctx, r)
	r.report.CampaignID = r.id
	r.report.StorageOnline = r.online

	ctx = logging.WithCampaignID(ctx, r.id)
	r.logger = logging.FromContext(ctx, o.logger)

	searcherConfig := search.SearcherConfig{
		RequestTimeout:     o.config.RequestTimeout,
		CheckpointInterval: o.config.CheckpointInterval,
		CheckpointDir:      o.config.CheckpointDir,
	}
	if p.SearchType.Web() {
		r.web = search.NewWebSearcher(o.web, r.logger, searcherConfig)
	}
	if p.SearchType.Maps() {
		r.maps = search.NewMapsSearcher(o.maps, r.logger, searcherConfig)
	}
	if o.store != nil {
		r.flusher = merger.NewFlusher(o.store, r.id, r.logger)
	}

	r.logger.Info("Campaign started",
		zap.String("sector", p.Sector),
		zap.String("search_type", string(p.SearchType)),
		zap.Int("estimated_calls", r.report.Estimate.Total),
		zap.Bool("storage_online", r.online))

	err := o.execute(ctx, r)
	if err != nil {
		r.report.Status = repository.StatusInterrupted
		o.saveCheckpoints(r)
	} else {
		o.setStage(StageMerging)
		if err = o.mergeResults(ctx, r); err != nil {
			r.report.Status = repository.StatusFailed
		} else {
			r.report.Status = repository.StatusCompleted
		}
	}

	o.collectCounts(r)
	r.report.FinishedAt = o.now()
	o.finishCampaign(ctx, r)
	o.setStage(StageDone)

	r.logger.Info("Campaign finished",
		zap.String("status", string(r.report.Status)),
		zap.Int("api_calls", r.report.APICalls()),
		zap.Int("flushed", r.report.Flushed),
		zap.Int("unique", r.report.Unique),
		zap.Error(err))
	return r.report, err
}

// execute runs the search stages. Panics and cancellation end the run as
// interrupted; everything flushed so far stays in the store.
func (o *Orchestrator) execute(ctx context.Context, r *run) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Campaign run panicked", zap.Any("panic", rec), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrRunPanicked, rec)
		}
	}()

	if r.web != nil {
		o.setStage(StageExecutingWeb)
		if err := o.executeWeb(ctx, r); err != nil {
			return err
		}
	}
	if r.maps != nil {
		o.setStage(StageExecutingMaps)
		if err := o.executeMaps(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) executeWeb(ctx context.Context, r *run) error {
	queries := r.plan.SelectedQueries()
	target := r.plan.PagesPerQuery * search.ResultsPerPage
	total, done := r.plan.CityCount(), 0

	for _, country := range r.plan.Countries {
		for _, city := range country.Cities {
			location := search.LocationLabel(city, country.Code)
			before := r.web.Accepted()

			for _, q := range queries {
				if err := ctx.Err(); err != nil {
					return err
				}
				text := search.ExpandTemplate(q.Text(country.Code), r.plan.Keyword)
				query := search.BuildQuery(text, city, o.config.Exclusions)
				r.web.SearchSingleQuery(ctx, query, country.Code, country.Language, target, location)
			}

			r.webCount[location] = r.web.Accepted() - before
			r.web.SaveCheckpoint()
			o.flush(ctx, r, repository.SourceSearch, r.web.Results())

			done++
			o.progress(Progress{Stage: StageExecutingWeb, City: location, Completed: done, Total: total})
		}
	}
	return ctx.Err()
}

func (o *Orchestrator) executeMaps(ctx context.Context, r *run) error {
	queries := r.plan.SelectedQueries()
	cities := o.mapsCities(r)
	total := len(cities)

	for i, c := range cities {
		location := search.LocationLabel(c.city, c.country.Code)
		for _, q := range queries {
			text := search.ExpandTemplate(q.Text(c.country.Code), r.plan.Keyword)
			for page := 1; page <= r.plan.PagesPerQuery; page++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				r.maps.SearchPage(ctx, search.Task{
					Query:    text,
					City:     c.city,
					Country:  c.country.Code,
					Language: c.country.Language,
					Source:   repository.SourceMaps,
					Page:     page,
				})
			}
		}

		r.maps.SaveCheckpoint()
		o.flush(ctx, r, repository.SourceMaps, r.maps.Results())
		o.progress(Progress{Stage: StageExecutingMaps, City: location, Completed: i + 1, Total: total})
	}
	return ctx.Err()
}

type cityRef struct {
	country plan.Country
	city    string
}

// mapsCities returns the cities the maps stage visits in plan order. In
// supplement mode only the cities the web stage left under-represented are
// kept; when the web stage found nothing at all every city is kept.
func (o *Orchestrator) mapsCities(r *run) []cityRef {
	var all []cityRef
	for _, country := range r.plan.Countries {
		for _, city := range country.Cities {
			all = append(all, cityRef{country: country, city: city})
		}
	}
	if !r.plan.SupplementMaps || r.web == nil {
		return all
	}

	coverage := merger.CoverageFromCounts(r.webCount)
	if len(coverage.Groups) == 0 {
		return all
	}

	var out []cityRef
	for _, c := range all {
		location := search.LocationLabel(c.city, c.country.Code)
		if coverage.IsUnderrepresented(location) {
			out = append(out, c)
			r.report.SupplementedCities = append(r.report.SupplementedCities, location)
		}
	}
	r.logger.Info("Maps supplementation",
		zap.Float64("mean_per_city", coverage.Mean),
		zap.Int("cities", len(out)),
		zap.Int("skipped", len(all)-len(out)))
	return out
}

// flush persists a searcher buffer when the store is online. A store error
// switches the rest of the run to offline mode. Flushed records that never
// reached the checkpoint file are kept for the merge.
func (o *Orchestrator) flush(ctx context.Context, r *run, source repository.Source, buf *repository.Buffer) {
	if !r.online || r.flusher == nil {
		return
	}

	items := buf.Items()
	checkpointed := len(items) - buf.PendingCount()
	_, err := r.flusher.Flush(ctx, buf)
	if dropped := len(items) - buf.Len(); dropped > checkpointed {
		r.unsaved[source] = append(r.unsaved[source], items[checkpointed:dropped]...)
	}
	if err != nil {
		r.logger.Warn("Flush failed, continuing without storage", zap.Error(err))
		r.online = false
		return
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := o.store.UpdateResultCount(sctx, r.id, r.flusher.Flushed()); err != nil {
		r.logger.Warn("Failed to update result count", zap.Error(err))
	}
}

func (o *Orchestrator) saveCheckpoints(r *run) {
	if r.web != nil {
		r.web.SaveCheckpoint()
	}
	if r.maps != nil {
		r.maps.SaveCheckpoint()
	}
}

// mergeResults reads back both checkpoint files, adds the records that
// could not be checkpointed, merges them on domain and exports the final
// dataset
func (o *Orchestrator) mergeResults(ctx context.Context, r *run) error {
	o.saveCheckpoints(r)

	var sets [][]repository.ResultRecord
	if r.web != nil {
		set, err := r.sourceRecords(repository.SourceSearch, r.web.CheckpointPath(), r.web.Results())
		if err != nil {
			return err
		}
		sets = append(sets, set)
	}
	if r.maps != nil {
		set, err := r.sourceRecords(repository.SourceMaps, r.maps.CheckpointPath(), r.maps.Results())
		if err != nil {
			return err
		}
		sets = append(sets, set)
	}

	res := merger.Merge(sets, merger.KeyDomain)
	r.report.Total, r.report.Unique, r.report.Duplicates = res.Total, res.Unique, res.Duplicates
	r.logger.Info("Results merged",
		zap.Int("total", res.Total),
		zap.Int("unique", res.Unique),
		zap.Int("duplicates", res.Duplicates))

	ts := o.now().Format("20060102_150405")
	if r.web != nil {
		if groups := r.web.RelatedSearches(); len(groups) > 0 {
			path := filepath.Join(o.config.ResultsDir, fmt.Sprintf("related_searches_%s.csv", ts))
			if err := search.ExportRelatedSearches(groups, path); err != nil {
				r.logger.Warn("Failed to export related searches", zap.Error(err))
			} else {
				r.report.RelatedSearchesFile = path
			}
		}
	}

	if len(res.Records) == 0 {
		return nil
	}

	path, err := merger.ExportCSV(res.Records, filepath.Join(o.config.ResultsDir, fmt.Sprintf("final_merged_%s.csv", ts)))
	if err != nil {
		return err
	}
	r.report.OutputFile = path

	if o.uploader != nil {
		key, err := o.uploader.Upload(ctx, path)
		if err != nil {
			// the local export is the source of truth
			r.logger.Warn("Failed to upload export", zap.String("file", path), zap.Error(err))
			return nil
		}
		r.report.UploadedTo = key
	}
	return nil
}

// sourceRecords returns every record a searcher accepted during the run: the
// checkpoint file, flushed records it missed, and whatever is still pending
func (r *run) sourceRecords(source repository.Source, checkpointPath string, buf *repository.Buffer) ([]repository.ResultRecord, error) {
	var records []repository.ResultRecord
	if checkpointPath != "" {
		saved, err := merger.ReadCSV(checkpointPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint: %w", err)
		}
		records = saved
	}
	records = append(records, r.unsaved[source]...)
	return append(records, buf.Pending()...), nil
}

func (o *Orchestrator) collectCounts(r *run) {
	if r.web != nil {
		r.report.WebCalls = r.web.APICalls()
		r.report.WebResults = r.web.Accepted()
		r.report.WebCheckpoint = r.web.CheckpointPath()
	}
	if r.maps != nil {
		r.report.MapsCalls = r.maps.APICalls()
		r.report.MapsResults = r.maps.Accepted()
		r.report.MapsCheckpoint = r.maps.CheckpointPath()
	}
	if r.flusher != nil {
		r.report.Flushed = r.flusher.Flushed()
	}
}

func (o *Orchestrator) createCampaign(ctx context.Context, r *run) string {
	id := uuid.New().String()
	if !r.online {
		return id
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	created, err := o.store.CreateCampaign(sctx, &repository.Campaign{
		ID:         id,
		Sector:     r.plan.Sector,
		Countries:  r.plan.CountryCodes(),
		Queries:    r.plan.Templates(),
		SearchType: string(r.plan.SearchType),
		Status:     repository.StatusRunning,
		Notes:      r.plan.Notes,
		StartedAt:  r.report.StartedAt,
	})
	if err != nil {
		o.logger.Warn("Failed to create campaign, continuing without storage", zap.Error(err))
		r.online = false
		return id
	}
	r.created = true
	return created
}

// finishCampaign records the final status. It runs detached from ctx so an
// interrupted run still gets its status written.
func (o *Orchestrator) finishCampaign(ctx context.Context, r *run) {
	if !r.created {
		return
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	total := r.report.Flushed
	if r.report.Status == repository.StatusCompleted && r.report.Unique > 0 {
		total = r.report.Unique
	}
	summary := repository.CampaignSummary{
		Status:       r.report.Status,
		TotalResults: total,
		APICallsUsed: r.report.APICalls(),
	}
	if r.report.OutputFile != "" {
		summary.CSVFilename = filepath.Base(r.report.OutputFile)
	}
	if err := o.store.UpdateCampaign(sctx, r.id, summary); err != nil {
		r.logger.Warn("Failed to update campaign status", zap.Error(err))
	}
}

func (o *Orchestrator) progress(p Progress) {
	if o.onProgress != nil {
		o.onProgress(p)
	}
}
