// Package mold holds the MolD analysis parameters, the taxa list
// digestion rules, and the task runner that drives the external mold
// command line tool.
package mold

import (
	"fmt"
	"strings"
)

// TaxonSelectMode controls which individual taxa are diagnosed.
type TaxonSelectMode string

const (
	TaxaAll  TaxonSelectMode = "all"
	TaxaList TaxonSelectMode = "list"
	TaxaLine TaxonSelectMode = "line"
	TaxaNone TaxonSelectMode = "none"
)

// PairwiseSelectMode controls which taxon pairs are compared.
type PairwiseSelectMode string

const (
	PairsAll  PairwiseSelectMode = "all"
	PairsList PairwiseSelectMode = "list"
	PairsLine PairwiseSelectMode = "line"
	PairsNone PairwiseSelectMode = "none"
)

// TaxonRank selects the divergence allowance for the artificial datasets.
type TaxonRank string

const (
	RankSpecies       TaxonRank = "species"
	RankSupraspecific TaxonRank = "supraspecific"
)

// Code is the numeric flag the mold tool expects.
func (r TaxonRank) Code() string {
	if r == RankSupraspecific {
		return "2"
	}
	return "1"
}

// PDiff is the default divergence percentage for the rank: up to 1%
// from the original sequences for species, up to 5% for supraspecific taxa.
func (r TaxonRank) PDiff() int {
	if r == RankSupraspecific {
		return 5
	}
	return 1
}

// ParseTaxonRank accepts the numeric codes used in configuration files.
func ParseTaxonRank(s string) (TaxonRank, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return RankSpecies, nil
	case "2":
		return RankSupraspecific, nil
	}
	return "", fmt.Errorf("invalid taxon rank: %q", s)
}

// GapsAsCharacters selects how alignment gaps are treated: as independent
// characters, or as missing data.
type GapsAsCharacters bool

// Code is the flag the mold tool expects.
func (g GapsAsCharacters) Code() string {
	if g {
		return "Yes"
	}
	return "No"
}

// ParseGapsAsCharacters accepts the Yes/No codes used in configuration files.
func ParseGapsAsCharacters(s string) (GapsAsCharacters, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES":
		return GapsAsCharacters(true), nil
	case "NO":
		return GapsAsCharacters(false), nil
	}
	return false, fmt.Errorf("invalid gaps-as-characters value: %q", s)
}

// Scoring selects how strictly candidate DNCs are scored in the
// rating and refinement step.
type Scoring string

const (
	ScoringLousy     Scoring = "lousy"
	ScoringModerate  Scoring = "moderate"
	ScoringStringent Scoring = "very_stringent"
)

// ParseScoring accepts the codes used in configuration files.
func ParseScoring(s string) (Scoring, error) {
	switch Scoring(strings.ToLower(strings.TrimSpace(s))) {
	case ScoringLousy:
		return ScoringLousy, nil
	case ScoringModerate:
		return ScoringModerate, nil
	case ScoringStringent:
		return ScoringStringent, nil
	}
	return "", fmt.Errorf("invalid scoring value: %q", s)
}
