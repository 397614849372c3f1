package mold

import (
	"reflect"
	"testing"
)

func TestCondenseInflate(t *testing.T) {
	tests := []struct {
		text, separator string
		condensed       string
		inflated        string
	}{
		{"TaxonA VS TaxonB", "VS", "TaxonAVSTaxonB", "TaxonA VS TaxonB"},
		{"A + B +C", "+", "A+B+C", "A + B + C"},
		{"Single", "VS", "Single", "Single"},
	}
	for _, tt := range tests {
		if got := Condense(tt.text, tt.separator); got != tt.condensed {
			t.Errorf("Condense(%q, %q) = %q, want %q", tt.text, tt.separator, got, tt.condensed)
		}
		if got := Inflate(tt.condensed, tt.separator); got != tt.inflated {
			t.Errorf("Inflate(%q, %q) = %q, want %q", tt.condensed, tt.separator, got, tt.inflated)
		}
	}
}

func TestAssembleTaxa(t *testing.T) {
	tests := []struct {
		name       string
		taxonMode  TaxonSelectMode
		taxonList  string
		pairsMode  PairwiseSelectMode
		pairsList  string
		want       []string
	}{
		{
			name:      "all and all pairs",
			taxonMode: TaxaAll,
			pairsMode: PairsAll,
			want:      []string{"ALL", "ALLVSALL"},
		},
		{
			name:      "taxon list over lines",
			taxonMode: TaxaList,
			taxonList: "TaxonA\nTaxonB\n\n",
			pairsMode: PairsNone,
			want:      []string{"TaxonA", "TaxonB"},
		},
		{
			name:      "pair list condensed",
			taxonMode: TaxaNone,
			pairsMode: PairsList,
			pairsList: "TaxonA VS TaxonB\nC + D VS E",
			want:      []string{"TaxonAVSTaxonB", "C+DVSE"},
		},
		{
			name:      "nothing selected",
			taxonMode: TaxaNone,
			pairsMode: PairsNone,
			want:      nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssembleTaxa(tt.taxonMode, tt.taxonList, tt.pairsMode, tt.pairsList)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AssembleTaxa = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDigestTaxa(t *testing.T) {
	taxa, pairs := DigestTaxa("TaxonA, TaxonB+TaxonC, TaxonDVSTaxonE")
	if want := "TaxonA\nTaxonB + TaxonC\n"; taxa != want {
		t.Errorf("taxa = %q, want %q", taxa, want)
	}
	if want := "TaxonD VS TaxonE\n"; pairs != want {
		t.Errorf("pairs = %q, want %q", pairs, want)
	}
}

func TestDigestTaxaRoundTrip(t *testing.T) {
	taxa, pairs := DigestTaxa("A,B+C,DVSE")
	got := AssembleTaxa(TaxaList, taxa, PairsList, pairs)
	want := []string{"A", "B+C", "DVSE"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}
