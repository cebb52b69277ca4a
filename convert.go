package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Tnze/go-mc/save"
	"github.com/schollz/progressbar/v3"
)

// ConvertOptions carries one conversion run's inputs.
type ConvertOptions struct {
	WorldDir    string
	TemplateDir string
	OutputDir   string
	BlocksPath  string
	Overwrite   bool
	Config      Config
}

// Run drives a whole conversion: open the database, repair what the raw
// scan can recover, then translate every chunk position exactly once into
// the output world.
func Run(opts ConvertOptions) error {
	world, err := OpenCDBWorld(opts.WorldDir)
	if err != nil {
		return err
	}
	defer world.Close()

	blocks, err := LoadBlockMap(opts.BlocksPath)
	if err != nil {
		return err
	}
	logger.Info().Str("world", world.Name).Int("entries", len(world.Entries)).
		Int("mappings", blocks.Len()).Msg("opened world")

	corrupted := 0
	for i := range world.Entries {
		if world.Entries[i].Corrupted {
			corrupted++
		}
	}
	if corrupted > 0 {
		logger.Warn().Int("count", corrupted).Msg("index entries failed validation")
	}

	if err := ValidateTemplate(opts.TemplateDir); err != nil {
		return err
	}
	if err := PrepareOutput(opts.OutputDir, opts.Overwrite); err != nil {
		return err
	}

	recovered := ScanRecovery(world)
	reportRecovery(recovered)

	fixed, err := RepairIndex(world, recovered)
	if err != nil {
		return fmt.Errorf("repairing index: %w", err)
	}
	if fixed > 0 {
		announce("Fixed %d corrupt chunks!", fixed)
	}

	if err := CopyTemplate(opts.TemplateDir, opts.OutputDir); err != nil {
		return fmt.Errorf("copying template: %w", err)
	}
	if err := SetLevelName(opts.OutputDir, world.Name); err != nil {
		return err
	}

	chunks, err := convertChunks(world, blocks, recovered, opts.Config)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(len(chunks)), "saving regions")
	if err := SaveChunks(opts.OutputDir, chunks, func() { _ = bar.Add(1) }); err != nil {
		return err
	}
	announce("Converted %d chunks into %s", len(chunks), opts.OutputDir)
	return nil
}

func reportRecovery(recovered *RecoveredSet) {
	if recovered.Len() == 0 {
		return
	}
	announce("Found %d chunks needing recovery", recovered.Len())
	for pair := recovered.Oldest(); pair != nil; pair = pair.Next() {
		copies := make([]string, len(pair.Value))
		for i, ref := range pair.Value {
			copies[i] = fmt.Sprintf("(slot %d subfile %d)", ref.Slot, ref.Subfile)
		}
		announce("%v: found %d potentially non-corrupted copies: %s",
			pair.Key, len(pair.Value), strings.Join(copies, ", "))
	}
}

// chunkJob names one position to convert and where its record lives. A
// placeholder job has no record at all.
type chunkJob struct {
	pos         Position
	slot        int
	subfile     int
	placeholder bool
}

// buildJobs lists every position exactly once: recovered positions from
// their first candidate copy, intact entries from where the index points,
// and corrupted entries without candidates as placeholders.
func buildJobs(w *CDBWorld, recovered *RecoveredSet) []chunkJob {
	jobs := make([]chunkJob, 0, len(w.Entries)+recovered.Len())
	inRecovered := make(map[Position]bool, recovered.Len())
	for pair := recovered.Oldest(); pair != nil; pair = pair.Next() {
		ref := pair.Value[0]
		jobs = append(jobs, chunkJob{pos: pair.Key, slot: ref.Slot, subfile: ref.Subfile})
		inRecovered[pair.Key] = true
	}
	for i := range w.Entries {
		e := &w.Entries[i]
		if inRecovered[e.Position] {
			continue
		}
		if e.Corrupted {
			logger.Warn().Stringer("position", e.Position).Msg("corrupted chunk has no recovery candidates")
			jobs = append(jobs, chunkJob{pos: e.Position, placeholder: true})
			continue
		}
		jobs = append(jobs, chunkJob{pos: e.Position, slot: e.Slot, subfile: e.Subfile})
	}
	return jobs
}

func convertChunks(w *CDBWorld, blocks *BlockMap, recovered *RecoveredSet, cfg Config) (map[Position]*save.Chunk, error) {
	jobs := buildJobs(w, recovered)
	bar := progressbar.Default(int64(len(jobs)), "converting chunks")

	type result struct {
		pos   Position
		chunk *save.Chunk
		err   error
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	jobChan := make(chan chunkJob)
	resultChan := make(chan result, len(jobs))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobChan {
				c, err := convertOne(w, blocks, job, cfg)
				resultChan <- result{pos: job.pos, chunk: c, err: err}
				_ = bar.Add(1)
			}
		}()
	}
	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)
	wg.Wait()
	close(resultChan)

	chunks := make(map[Position]*save.Chunk, len(jobs))
	for res := range resultChan {
		if res.err != nil {
			return nil, res.err
		}
		chunks[res.pos] = res.chunk
	}
	return chunks, nil
}

// convertOne turns one job into a destination chunk. A record that cannot
// be read or assembled downgrades to a placeholder instead of failing the
// run; one bad record costs that chunk, not the world.
func convertOne(w *CDBWorld, blocks *BlockMap, job chunkJob, cfg Config) (*save.Chunk, error) {
	if !job.placeholder {
		c, err := convertRecord(w, blocks, job, cfg)
		if err == nil {
			return c, nil
		}
		logger.Warn().Err(err).Stringer("position", job.pos).Msg("converting chunk as lost")
	}
	c, err := PlaceholderChunk(job.pos, cfg.FillCorruptedChunks, cfg.DataVersion)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func convertRecord(w *CDBWorld, blocks *BlockMap, job chunkJob, cfg Config) (*save.Chunk, error) {
	rec, err := w.ReadRecord(job.slot, job.subfile)
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	c, err := BuildChunk(rec, job.pos, blocks, cfg.DataVersion)
	if err != nil {
		return nil, fmt.Errorf("assembling chunk: %w", err)
	}
	return &c, nil
}
