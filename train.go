package qsample

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/eval"
	"github.com/happyhackingspace/qsample/internal/storage"
)

// TrainConfig holds configuration for training.
type TrainConfig struct {
	// Config overrides DefaultConfig when not nil.
	Config *Config
	// OnEpoch is called after every sampler epoch.
	OnEpoch func(epoch int)
}

// EvalConfig holds configuration for evaluation.
type EvalConfig struct {
	Config *Config
	// OnFold is called after every cross-validation fold.
	OnFold func(fold, folds int)
}

// EvalResult holds cross-validation evaluation results.
type EvalResult struct {
	Method    Method       `json:"method"`
	Folds     int          `json:"folds"`
	Documents int          `json:"documents"`
	Report    *eval.Report `json:"report"`
}

func resolve(config *Config) Config {
	if config == nil {
		return DefaultConfig()
	}
	return *config
}

// LoadDocuments reads a split of the data folder with token features.
func LoadDocuments(ctx context.Context, dataDir string, split storage.Split) ([]*corpus.Document, error) {
	opts := storage.DefaultIterOptions()
	opts.Split = split
	docs, err := storage.NewStorage(dataDir).IterDocuments(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("qsample: %w", err)
	}
	return docs, nil
}

// Train trains a pipeline on the train split of the data directory. The dev
// split, if any, is used as held-out data.
func Train(dataDir string, config *TrainConfig) (*Pipeline, error) {
	if config == nil {
		config = &TrainConfig{}
	}
	ctx := context.Background()
	train, err := LoadDocuments(ctx, dataDir, storage.SplitTrain)
	if err != nil {
		return nil, err
	}
	if len(train) == 0 {
		return nil, fmt.Errorf("qsample: no documents found in %s", dataDir)
	}
	dev, err := LoadDocuments(ctx, dataDir, storage.SplitDev)
	if err != nil {
		return nil, err
	}

	p, err := NewPipeline(resolve(config.Config))
	if err != nil {
		return nil, err
	}
	if err := p.Train(train, dev, config.OnEpoch); err != nil {
		return nil, err
	}
	return p, nil
}

// Evaluate runs grouped cross-validation over every document of the data
// directory. Documents from the same site never straddle folds.
func Evaluate(dataDir string, config *EvalConfig) (*EvalResult, error) {
	if config == nil {
		config = &EvalConfig{}
	}
	cfg := resolve(config.Config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("qsample: %w", err)
	}

	docs, err := LoadDocuments(context.Background(), dataDir, storage.SplitAll)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("qsample: no documents found in %s", dataDir)
	}

	folds := groupKFold(domainGroups(docs), cfg.Folds)
	result := &EvalResult{Method: cfg.Method, Folds: len(folds), Documents: len(docs), Report: &eval.Report{}}
	for i, testIdx := range folds {
		testSet := makeTestSet(len(docs), testIdx)
		var train, test []*corpus.Document
		for j, d := range docs {
			if testSet[j] {
				test = append(test, d)
			} else {
				train = append(train, d)
			}
		}
		if len(train) == 0 {
			return nil, fmt.Errorf("qsample: fold %d has no training documents", i)
		}

		p, err := NewPipeline(cfg)
		if err != nil {
			return nil, err
		}
		if err := p.Train(train, nil, nil); err != nil {
			return nil, fmt.Errorf("qsample: fold %d: %w", i, err)
		}
		if err := p.Predict(test); err != nil {
			return nil, fmt.Errorf("qsample: fold %d: %w", i, err)
		}
		// Later folds train on these documents and overwrite their
		// predictions, so score them now.
		report, err := eval.NewReport(test)
		if err != nil {
			return nil, fmt.Errorf("qsample: fold %d: %w", i, err)
		}
		result.Report.Add(report)
		slog.Debug("fold evaluated", "fold", i, "train", len(train), "test", len(test), "strict_f1", report.Strict.F1)
		if config.OnFold != nil {
			config.OnFold(i, len(folds))
		}
	}
	return result, nil
}

// groupKFold assigns whole groups to folds round robin, in order of first
// appearance.
func groupKFold(groups []int, nFolds int) [][]int {
	uniqueGroups := make(map[int]bool)
	for _, g := range groups {
		uniqueGroups[g] = true
	}
	sortedGroups := make([]int, 0, len(uniqueGroups))
	for g := range uniqueGroups {
		sortedGroups = append(sortedGroups, g)
	}
	sort.Ints(sortedGroups)

	if nFolds > len(sortedGroups) {
		nFolds = len(sortedGroups)
	}

	groupToFold := make(map[int]int)
	for i, g := range sortedGroups {
		groupToFold[g] = i % nFolds
	}

	folds := make([][]int, nFolds)
	for i, g := range groups {
		fold := groupToFold[g]
		folds[fold] = append(folds[fold], i)
	}
	return folds
}

// domainGroups numbers documents by the registrable domain of their URL.
// Documents without a URL form groups of their own.
func domainGroups(docs []*corpus.Document) []int {
	groups := make([]int, len(docs))
	domainMap := make(map[string]int)
	for i, d := range docs {
		key := "id:" + d.ID
		if d.URL != "" {
			key = "domain:" + storage.GetDomain(d.URL)
		}
		if _, ok := domainMap[key]; !ok {
			domainMap[key] = len(domainMap)
		}
		groups[i] = domainMap[key]
	}
	return groups
}

func makeTestSet(n int, testIdx []int) []bool {
	set := make([]bool, n)
	for _, i := range testIdx {
		set[i] = true
	}
	return set
}
