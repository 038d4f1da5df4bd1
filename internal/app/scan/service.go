package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"duplo/internal/domain/model"
	"duplo/internal/domain/signature"
	"duplo/internal/infra/filesystem"
	"duplo/internal/infra/fingerprint"
	"duplo/internal/infra/logging"
)

// exhaustiveBelow is the threshold under which set signatures skip LSH
// bucketing and are compared all-pairs, since banding recall drops there.
const exhaustiveBelow = 0.5

type Fingerprinter interface {
	Eligible(path string, size int64, mode model.ComparisonType) bool
	Signature(ctx context.Context, path string, mode model.ComparisonType) (model.Signature, error)
}

type Options struct {
	Threshold float64
	Workers   int
	Walk      filesystem.WalkOptions
}

// Outcome is the single value delivered by ScanAsync.
type Outcome struct {
	Report model.ScanReport
	Err    error
}

type Service struct {
	fp Fingerprinter
}

func NewService(fp Fingerprinter) Service {
	if fp == nil {
		fp = fingerprint.New(nil)
	}
	return Service{fp: fp}
}

// ScanAsync runs Scan on its own goroutine. The channel yields exactly one
// Outcome and is then closed.
func (s Service) ScanAsync(ctx context.Context, root string, mode model.ComparisonType, opts Options) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		report, err := s.Scan(ctx, root, mode, opts)
		ch <- Outcome{Report: report, Err: err}
	}()
	return ch
}

// Scan walks root and reports duplicate pairs for mode, sorted by
// (file1, file2). Exact modes use a star per group: the smallest path is
// file1 and every other member is paired with it.
func (s Service) Scan(ctx context.Context, root string, mode model.ComparisonType, opts Options) (model.ScanReport, error) {
	log := logging.Get()
	if _, err := model.ParseComparisonType(string(mode)); err != nil {
		return model.ScanReport{}, &model.ScanError{Root: root, Err: err}
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 0.85
	}
	if threshold > 1 {
		threshold = 1
	}

	walked, err := filesystem.Walk(ctx, root, opts.Walk)
	if err != nil {
		return model.ScanReport{}, err
	}
	absRoot := walked.Root
	log.Debug().Str("root", absRoot).Str("mode", string(mode)).Int("files", len(walked.Files)).Msg("walk complete")

	candidates := s.candidates(walked.Files, mode)
	sigs, warnings, err := s.fingerprint(ctx, candidates, mode, opts.Workers)
	if err != nil {
		return model.ScanReport{}, &model.ScanError{Root: absRoot, Err: err}
	}

	var pairs []model.DuplicatePair
	if mode.Exact() {
		pairs = exactPairs(candidates, sigs, mode)
	} else {
		pairs = fuzzyPairs(candidates, sigs, mode, threshold)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].File1 != pairs[j].File1 {
			return pairs[i].File1 < pairs[j].File1
		}
		return pairs[i].File2 < pairs[j].File2
	})

	all := append(walked.Warnings, warnings...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Path < all[j].Path })

	compared := 0
	for _, sig := range sigs {
		if sig != nil {
			compared++
		}
	}
	log.Info().Str("root", absRoot).Str("mode", string(mode)).Int("pairs", len(pairs)).Int("warnings", len(all)).Msg("scan complete")

	if pairs == nil {
		pairs = []model.DuplicatePair{}
	}
	return model.ScanReport{
		Root:          absRoot,
		Mode:          mode,
		FilesSeen:     len(walked.Files),
		FilesCompared: compared,
		Pairs:         pairs,
		Warnings:      all,
	}, nil
}

// candidates filters walked files down to those that take part in mode. Hash
// mode also drops files whose size is unique, since they cannot match.
func (s Service) candidates(files []model.FileRecord, mode model.ComparisonType) []model.FileRecord {
	out := make([]model.FileRecord, 0, len(files))
	for _, f := range files {
		if s.fp.Eligible(f.Path, f.SizeBytes, mode) {
			out = append(out, f)
		}
	}
	if mode != model.CompareHash {
		return out
	}
	bySize := make(map[int64]int, len(out))
	for _, f := range out {
		bySize[f.SizeBytes]++
	}
	kept := out[:0]
	for _, f := range out {
		if bySize[f.SizeBytes] > 1 {
			kept = append(kept, f)
		}
	}
	return kept
}

// fingerprint computes signatures on a pool owned by this call. A nil entry
// means the file was skipped and a warning was recorded for it.
func (s Service) fingerprint(ctx context.Context, files []model.FileRecord, mode model.ComparisonType, workers int) ([]*model.Signature, []model.ScanWarning, error) {
	sigs := make([]*model.Signature, len(files))
	if len(files) == 0 {
		return sigs, nil, ctx.Err()
	}
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		warnings []model.ScanWarning
	)
	warn := func(path string, err error) {
		mu.Lock()
		warnings = append(warnings, model.ScanWarning{Path: path, Error: err.Error()})
		mu.Unlock()
	}

	for i := range files {
		if ctx.Err() != nil {
			break
		}
		i := i
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			sig, err := s.fp.Signature(ctx, files[i].Path, mode)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					warn(files[i].Path, err)
				}
				return
			}
			sigs[i] = &sig
		})
		if err != nil {
			wg.Done()
			warn(files[i].Path, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrCanceled, err)
	}
	return sigs, warnings, nil
}

// exactPairs groups by signature key. Hard links to one inode are collapsed
// to their first path: removing one of them frees nothing.
func exactPairs(files []model.FileRecord, sigs []*model.Signature, mode model.ComparisonType) []model.DuplicatePair {
	groups := make(map[string][]model.FileRecord)
	for i, sig := range sigs {
		if sig == nil {
			continue
		}
		key := sig.Digest
		if mode == model.CompareEmptyFile {
			if !sig.Empty {
				continue
			}
			key = "empty"
		}
		groups[key] = append(groups[key], files[i])
	}

	var pairs []model.DuplicatePair
	for _, members := range groups {
		members = distinctInodes(members)
		if len(members) < 2 {
			continue
		}
		ref := members[0].Path
		for _, m := range members[1:] {
			pairs = append(pairs, model.DuplicatePair{File1: ref, File2: m.Path, Similarity: 1, ComparisonType: mode})
		}
	}
	return pairs
}

// distinctInodes sorts members by path and keeps the first path of each
// dev/ino. Records without an identity are always kept.
func distinctInodes(members []model.FileRecord) []model.FileRecord {
	sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
	seen := make(map[[2]uint64]struct{}, len(members))
	out := members[:0]
	for _, m := range members {
		if m.Ino != 0 {
			id := [2]uint64{m.Dev, m.Ino}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, m)
	}
	return out
}

func sameInode(a, b model.FileRecord) bool {
	return a.Ino != 0 && a.Dev == b.Dev && a.Ino == b.Ino
}

func fuzzyPairs(files []model.FileRecord, sigs []*model.Signature, mode model.ComparisonType, threshold float64) []model.DuplicatePair {
	buckets := make(map[signature.BandKey][]int)
	for i, sig := range sigs {
		if sig == nil || sig.Empty {
			continue
		}
		for _, key := range bandsFor(*sig, mode, threshold) {
			buckets[key] = append(buckets[key], i)
		}
	}

	seen := make(map[[2]int]struct{})
	var pairs []model.DuplicatePair
	for _, members := range buckets {
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				i, j := members[a], members[b]
				if i > j {
					i, j = j, i
				}
				k := [2]int{i, j}
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				if sameInode(files[i], files[j]) {
					continue
				}
				sim := fingerprint.Similarity(*sigs[i], *sigs[j])
				if sim < threshold {
					continue
				}
				p1, p2 := files[i].Path, files[j].Path
				if p2 < p1 {
					p1, p2 = p2, p1
				}
				pairs = append(pairs, model.DuplicatePair{File1: p1, File2: p2, Similarity: sim, ComparisonType: mode})
			}
		}
	}
	return pairs
}

func bandsFor(sig model.Signature, mode model.ComparisonType, threshold float64) []signature.BandKey {
	switch mode {
	case model.CompareImageVisual, model.CompareDocument:
		return signature.BitBands(sig.Bits, signature.MaxDistance(threshold))
	default:
		if threshold < exhaustiveBelow {
			return []signature.BandKey{{Band: -1}}
		}
		return signature.MinHashBands(sig.MinHash)
	}
}
