package dataset

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Sample is one matched triple of image paths sharing a key. For training
// the aux entry is the synthetic-watermarked rendition; for evaluation it
// is the watermark mask.
type Sample struct {
	Key    string
	Marked string
	Clean  string
	Aux    string
}

// PairSource joins three image roots by file key (base name without
// extension). How the marked and aux renditions were produced is the data
// pipeline's business; this source only pairs what is on disk.
type PairSource struct {
	samples []Sample
}

// NewPairSource discovers the three roots and pairs their files. Keys that
// are missing from any root are dropped; an empty join is an error.
func NewPairSource(markedRoot, cleanRoot, auxRoot string) (*PairSource, error) {
	marked, err := indexByKey(markedRoot)
	if err != nil {
		return nil, err
	}
	clean, err := indexByKey(cleanRoot)
	if err != nil {
		return nil, err
	}
	aux, err := indexByKey(auxRoot)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(marked))
	for key := range marked {
		if _, ok := clean[key]; !ok {
			continue
		}
		if _, ok := aux[key]; !ok {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, errors.Errorf("dataset: no keys shared by %s, %s and %s", markedRoot, cleanRoot, auxRoot)
	}
	sort.Strings(keys)

	samples := make([]Sample, len(keys))
	for i, key := range keys {
		samples[i] = Sample{Key: key, Marked: marked[key], Clean: clean[key], Aux: aux[key]}
	}
	return &PairSource{samples: samples}, nil
}

// Len reports the number of paired samples.
func (s *PairSource) Len() int { return len(s.samples) }

// Samples returns the paired triples in key order.
func (s *PairSource) Samples() []Sample { return s.samples }

// Shard returns the strided partition of the source for one worker. Callers
// running several workers must give every worker the same source and a
// distinct rank so the shards are non-overlapping and exhaustive; the
// evaluation reduction depends on that partition.
func (s *PairSource) Shard(rank, world int) *PairSource {
	if world <= 1 {
		return s
	}
	shard := make([]Sample, 0, len(s.samples)/world+1)
	for i := rank; i < len(s.samples); i += world {
		shard = append(shard, s.samples[i])
	}
	return &PairSource{samples: shard}
}

func indexByKey(root string) (map[string]string, error) {
	paths, err := DiscoverImages(root)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: scan %s", root)
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("dataset: no images under %s", root)
	}
	index := make(map[string]string, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		key := strings.TrimSuffix(name, filepath.Ext(name))
		index[key] = path
	}
	return index, nil
}
