package corpus

import (
	"fmt"

	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/pmi"
	"github.com/cognicore/cooccur/pkg/cooccur/snapshot"
)

// Save writes the dictionary and cooccurrence matrix to modelPath and, when
// pmiPath is not empty, the PMI matrix to pmiPath.
func (c *Corpus) Save(modelPath, pmiPath string) error {
	if c.cooc == nil {
		return internalerr.ErrNotFitted
	}
	if err := snapshot.SaveModel(modelPath, c.dict, c.cooc); err != nil {
		return err
	}
	if pmiPath == "" {
		return nil
	}
	if c.pmi == nil {
		return internalerr.ErrNotFitted
	}
	return snapshot.SaveScores(pmiPath, c.pmi, c.pmiCfg)
}

// Load restores a corpus saved with Save. The loaded dictionary is fixed:
// a later Fit looks tokens up instead of adding them. When pmiPath is empty
// the PMI matrix is left unset; call ComputePMI to derive it.
func Load(modelPath, pmiPath string, opts ...Option) (*Corpus, error) {
	dict, cooc, err := snapshot.LoadModel(modelPath)
	if err != nil {
		return nil, err
	}

	c := New(opts...)
	c.dict = dict
	c.cooc = cooc
	c.stats = Stats{Pairs: cooc.Pairs(), Vocabulary: dict.Len()}
	c.fitted = true

	if pmiPath != "" {
		scores, cfg, err := snapshot.LoadScores(pmiPath)
		if err != nil {
			return nil, err
		}
		if scores.N() != cooc.N() {
			return nil, fmt.Errorf("%s is %d wide but %s is %d: %w", pmiPath, scores.N(), modelPath, cooc.N(), internalerr.ErrInvalidInput)
		}
		c.pmi, c.pmiCfg = scores, cfg
	}
	c.marginals = pmi.ComputeMarginals(cooc)

	c.log.Info("corpus loaded", "model", modelPath, "vocabulary", dict.Len(), "pairs", cooc.Pairs(), "pmi", c.pmi != nil)
	return c, nil
}
