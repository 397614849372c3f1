package mold

import "strconv"

// DNCParams tune the search for raw diagnostic nucleotide combinations.
// Zero values mean "use the default".
type DNCParams struct {
	// Cutoff caps how many sequences per taxon are considered, either a
	// plain number or ">N" to subsample larger taxa.
	Cutoff string `json:"cutoff,omitempty"`
	// Nucleotides is the number of ambiguously called nucleotides allowed
	// in a sequence before it is discarded.
	Nucleotides int `json:"nucleotides,omitempty"`
	// Iterations is the number of iterations of the mDNC search.
	Iterations int `json:"iterations,omitempty"`
	// MaxLengthRaw caps the length of candidate raw DNCs.
	MaxLengthRaw int `json:"max_length_raw,omitempty"`
	// MaxLengthRefined caps the length of refined DNCs.
	MaxLengthRefined int `json:"max_length_refined,omitempty"`
	// IndexingReference names the sequence used to index positions, or
	// "NO" to use the alignment itself.
	IndexingReference string `json:"indexing_reference,omitempty"`
}

// RDNSParams tune the in silico evaluation of candidate diagnoses
// against artificially mutated datasets.
type RDNSParams struct {
	// PDiff is the percent divergence of the artificial datasets from the
	// originals. Zero defers to the taxon rank default.
	PDiff int `json:"p_diff,omitempty"`
	// NMax is the number of sequences per taxon in the artificial datasets.
	NMax int `json:"n_max,omitempty"`
	// Scoring sets the acceptance threshold for candidate diagnoses.
	Scoring Scoring `json:"scoring,omitempty"`
}

const (
	defaultCutoff           = ">100"
	defaultNucleotides      = 5
	defaultIterations       = 10000
	defaultMaxLengthRaw     = 12
	defaultMaxLengthRefined = 7
	defaultIndexingRef      = "NO"
	defaultNMax             = 10
	defaultScoring          = ScoringModerate
)

// WithDefaults fills every unset field.
func (p DNCParams) WithDefaults() DNCParams {
	if p.Cutoff == "" {
		p.Cutoff = defaultCutoff
	}
	if p.Nucleotides == 0 {
		p.Nucleotides = defaultNucleotides
	}
	if p.Iterations == 0 {
		p.Iterations = defaultIterations
	}
	if p.MaxLengthRaw == 0 {
		p.MaxLengthRaw = defaultMaxLengthRaw
	}
	if p.MaxLengthRefined == 0 {
		p.MaxLengthRefined = defaultMaxLengthRefined
	}
	if p.IndexingReference == "" {
		p.IndexingReference = defaultIndexingRef
	}
	return p
}

// WithDefaults fills every unset field. The rank decides the
// divergence percentage when PDiff is unset.
func (p RDNSParams) WithDefaults(rank TaxonRank) RDNSParams {
	if p.PDiff == 0 {
		p.PDiff = rank.PDiff()
	}
	if p.NMax == 0 {
		p.NMax = defaultNMax
	}
	if p.Scoring == "" {
		p.Scoring = defaultScoring
	}
	return p
}

// ApplyConfiguration overwrites fields named by a parsed configuration
// file. Unknown keys are ignored here, the parser already rejected them.
func (p *DNCParams) ApplyConfiguration(params map[string]string) error {
	if v, ok := params["CUTOFF"]; ok {
		p.Cutoff = v
	}
	var err error
	set := func(dst *int, key string) {
		if v, ok := params[key]; ok && err == nil {
			*dst, err = strconv.Atoi(v)
		}
	}
	set(&p.Nucleotides, "NUMBERN")
	set(&p.Iterations, "NUMBER_OF_ITERATIONS")
	set(&p.MaxLengthRaw, "MAXLEN1")
	set(&p.MaxLengthRefined, "MAXLEN2")
	if v, ok := params["IREF"]; ok {
		p.IndexingReference = v
	}
	return err
}

// ApplyConfiguration overwrites fields named by a parsed configuration file.
func (p *RDNSParams) ApplyConfiguration(params map[string]string) error {
	var err error
	if v, ok := params["PDIFF"]; ok {
		if p.PDiff, err = strconv.Atoi(v); err != nil {
			return err
		}
	}
	if v, ok := params["NMAXSEQ"]; ok {
		if p.NMax, err = strconv.Atoi(v); err != nil {
			return err
		}
	}
	if v, ok := params["SCORING"]; ok {
		if p.Scoring, err = ParseScoring(v); err != nil {
			return err
		}
	}
	return nil
}
