package berealex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// Outcome is the terminal state of one job.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeCopyFailed
	OutcomeEmbedFailed
)

// ExportJob is one unit of work for the pool: one source file (or, for
// composites, a back/front pair), its resolved timestamp and destination.
type ExportJob struct {
	Category Category
	Role     Role
	Kind     MediaKind

	Source      string
	FrontSource string // composites only
	Dest        string

	Stamp    ResolvedTimestamp
	Location *Location
}

// Result pairs a finished job with its outcome.
type Result struct {
	Job     ExportJob
	Outcome Outcome
	Err     error
}

// CategoryCounts aggregates job outcomes for one category.
type CategoryCounts struct {
	Done        int
	CopyFailed  int
	EmbedFailed int
	Filtered    int
	Missing     int
}

// Summary is the final per-category accounting of a run.
type Summary struct {
	Counts map[Category]*CategoryCounts
}

func newSummary() *Summary {
	return &Summary{Counts: map[Category]*CategoryCounts{}}
}

func (s *Summary) counts(cat Category) *CategoryCounts {
	if s.Counts[cat] == nil {
		s.Counts[cat] = &CategoryCounts{}
	}
	return s.Counts[cat]
}

// TotalDone returns the number of successfully exported files.
func (s *Summary) TotalDone() int {
	n := 0
	for _, c := range s.Counts {
		n += c.Done
	}
	return n
}

// TotalFailed returns the number of jobs that ended in a failure state.
func (s *Summary) TotalFailed() int {
	n := 0
	for _, c := range s.Counts {
		n += c.CopyFailed + c.EmbedFailed
	}
	return n
}

// AllFailed reports whether every attempted job failed. Partial success is
// success.
func (s *Summary) AllFailed() bool {
	return s.TotalFailed() > 0 && s.TotalDone() == 0
}

// Log writes the per-category summary.
func (s *Summary) Log() {
	for cat, c := range s.Counts {
		klog.Infof("%s: %d exported, %d copy failures, %d embed failures, %d filtered out, %d missing on disk",
			cat, c.Done, c.CopyFailed, c.EmbedFailed, c.Filtered, c.Missing)
	}
}

// Exporter drives the pipeline: load manifests, filter, match, then copy,
// composite and tag across a bounded worker pool.
type Exporter struct {
	cfg    *Config
	tz     *TimezoneResolver
	writer MetadataWriter
}

// NewExporter wires an exporter. The MetadataWriter is injected so tests can
// substitute a fake for the exiftool process.
func NewExporter(cfg *Config, tz *TimezoneResolver, writer MetadataWriter) *Exporter {
	return &Exporter{cfg: cfg, tz: tz, writer: writer}
}

// Run performs one full export pass and returns the summary. Only
// configuration problems produce an error; per-job failures are counted and
// logged.
func (e *Exporter) Run() (*Summary, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	records, err := LoadRecords(e.cfg)
	if err != nil {
		return nil, err
	}

	summary := newSummary()
	jobs, err := e.buildJobs(records, summary)
	if err != nil {
		return nil, err
	}

	klog.Infof("running %d jobs on %d workers", len(jobs), e.workerCount())
	e.runJobs(jobs, summary)
	return summary, nil
}

func (e *Exporter) workerCount() int {
	if e.cfg.Workers < 1 {
		return 1
	}
	return e.cfg.Workers
}

// buildJobs turns records into jobs: resolve the local timestamp, apply the
// date filter, match files on disk and assign destinations. Destinations are
// decided here, single-threaded, so collisions never race in the pool.
func (e *Exporter) buildJobs(records []ExportRecord, summary *Summary) ([]ExportJob, error) {
	planned := map[string]bool{}
	var jobs []ExportJob

	for i := range records {
		rec := &records[i]
		counts := summary.counts(rec.Category)

		ts, err := e.tz.ResolveTime(rec.Taken, rec.Location)
		if err != nil {
			klog.Warningf("%s: %v, skipping", rec.ID, err)
			counts.Missing++
			continue
		}

		if !e.cfg.Filter.Include(ts.Local) {
			klog.V(1).Infof("%s: %s outside requested range", rec.ID, ts.FileStamp())
			counts.Filtered++
			continue
		}

		files, missing := MatchFiles(e.cfg.BeRealPath, rec)
		counts.Missing += missing

		outDir := filepath.Join(e.cfg.OutPath, string(rec.Category))
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, configErrorf("create %s: %v", outDir, err)
		}

		var backSrc, frontSrc string
		for _, f := range files {
			ext := strings.ToLower(filepath.Ext(f.SourcePath))
			dest := uniquePath(planned, filepath.Join(outDir, fmt.Sprintf("%s_%s%s", ts.FileStamp(), f.Role, ext)))
			jobs = append(jobs, ExportJob{
				Category: rec.Category,
				Role:     f.Role,
				Kind:     f.Kind,
				Source:   f.SourcePath,
				Dest:     dest,
				Stamp:    ts,
				Location: rec.Location,
			})

			if f.Kind == KindImage {
				switch f.Role {
				case RoleBack:
					backSrc = f.SourcePath
				case RoleFront:
					frontSrc = f.SourcePath
				}
			}
		}

		if e.cfg.Composite && backSrc != "" && frontSrc != "" {
			dest := uniquePath(planned, filepath.Join(outDir, fmt.Sprintf("%s_%s.jpg", ts.FileStamp(), RoleComposite)))
			jobs = append(jobs, ExportJob{
				Category:    rec.Category,
				Role:        RoleComposite,
				Kind:        KindImage,
				Source:      backSrc,
				FrontSource: frontSrc,
				Dest:        dest,
				Stamp:       ts,
				Location:    rec.Location,
			})
		}
	}
	return jobs, nil
}

// uniquePath appends a numeric suffix when dest is already planned or
// present on disk, so same-second records never overwrite each other.
func uniquePath(planned map[string]bool, dest string) string {
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(dest, ext)

	candidate := dest
	for n := 1; ; n++ {
		// only a successful stat means the name is taken; any stat
		// error surfaces later as a copy failure
		_, statErr := os.Stat(candidate)
		if !planned[candidate] && statErr != nil {
			break
		}
		candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
	planned[candidate] = true
	return candidate
}

// runJobs fans jobs out to the pool and aggregates results. Workers share no
// mutable state; all accounting happens on the single results loop.
func (e *Exporter) runJobs(jobs []ExportJob, summary *Summary) {
	jobCh := make(chan ExportJob)
	resultCh := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < e.workerCount(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				resultCh <- e.runJob(j)
			}
		}()
	}

	go func() {
		for _, j := range jobs {
			jobCh <- j
		}
		close(jobCh)
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	verbose := klog.V(1).Enabled()
	done := 0
	for r := range resultCh {
		done++
		counts := summary.counts(r.Job.Category)
		switch r.Outcome {
		case OutcomeDone:
			counts.Done++
		case OutcomeCopyFailed:
			counts.CopyFailed++
			klog.Errorf("%s: %v", r.Job.Dest, r.Err)
		case OutcomeEmbedFailed:
			counts.EmbedFailed++
			klog.Errorf("%s: %v", r.Job.Dest, r.Err)
		}
		if !verbose {
			fmt.Fprintf(os.Stderr, "\rexporting %d/%d", done, len(jobs))
		}
	}
	if !verbose && len(jobs) > 0 {
		fmt.Fprintln(os.Stderr)
	}
}

// runJob executes one job to a terminal state. A metadata failure leaves the
// copied file in place, untagged.
func (e *Exporter) runJob(j ExportJob) Result {
	if j.Role == RoleComposite {
		if err := CompositeFiles(j.Source, j.FrontSource, j.Dest); err != nil {
			return Result{Job: j, Outcome: OutcomeCopyFailed, Err: err}
		}
	} else {
		klog.V(1).Infof("copy %s -> %s", j.Source, j.Dest)
		if err := copy.Copy(j.Source, j.Dest); err != nil {
			return Result{Job: j, Outcome: OutcomeCopyFailed, Err: fmt.Errorf("copy: %w", err)}
		}
	}

	if err := e.writer.Write(j.Dest, j.Stamp, j.Location, j.Kind); err != nil {
		return Result{Job: j, Outcome: OutcomeEmbedFailed, Err: err}
	}
	return Result{Job: j, Outcome: OutcomeDone}
}
