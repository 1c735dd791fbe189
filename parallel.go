package gmmmml

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

type operation string

const (
	operationSplit  operation = "split"
	operationMerge  operation = "merge"
	operationDelete operation = "delete"
)

type candidate struct {
	op    operation
	index int
}

type candidateResult struct {
	candidate
	result *PerturbationResult
	err    error
}

// evaluateCandidates applies every perturbation candidate to the current
// mixture and returns a result per candidate, in input order.
//
// Candidates are mutually independent: each borrows the current mixture and
// dataset read-only and produces a brand-new mixture, so workers share no
// mutable state. Candidates are split across cfg.Workers goroutines in
// contiguous ranges; the only synchronization point is completion.
func evaluateCandidates(y *mat.Dense, mix *Mixture, candidates []candidate, cfg *Config) []candidateResult {
	results := make([]candidateResult, len(candidates))

	numWorkers := cfg.Workers
	if numWorkers <= 1 || len(candidates) <= 1 {
		for i, c := range candidates {
			results[i] = runCandidate(y, mix, c, cfg)
		}
		return results
	}

	var wg sync.WaitGroup
	perWorker := (len(candidates) + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		end := min(start+perWorker, len(candidates))
		if start >= len(candidates) {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				results[i] = runCandidate(y, mix, candidates[i], cfg)
			}
		}(start, end)
	}
	wg.Wait()
	return results
}

func runCandidate(y *mat.Dense, mix *Mixture, c candidate, cfg *Config) candidateResult {
	var res *PerturbationResult
	var err error
	switch c.op {
	case operationSplit:
		res, err = splitComponent(y, mix, c.index, cfg)
	case operationMerge:
		res, err = mergeComponent(y, mix, c.index, cfg)
	case operationDelete:
		res, err = deleteComponent(y, mix, c.index, cfg)
	}
	return candidateResult{candidate: c, result: res, err: err}
}
