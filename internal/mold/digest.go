package mold

import "strings"

// Condense strips the spaces around each separator occurrence, so that
// "TaxonA VS TaxonB" becomes "TaxonAVSTaxonB".
func Condense(text, separator string) string {
	split := strings.Split(text, separator)
	for i, part := range split {
		split[i] = strings.TrimSpace(part)
	}
	return strings.Join(split, separator)
}

// Inflate pads each separator occurrence with single spaces, undoing
// Condense for display in editable lists.
func Inflate(text, separator string) string {
	split := strings.Split(text, separator)
	for i, part := range split {
		split[i] = strings.TrimSpace(part)
	}
	return strings.Join(split, " "+separator+" ")
}

// AssembleTaxa turns the two selections into the comma-separated qTaxa
// entries the mold tool expects. List entries may span multiple lines and
// contain commas; blanks are dropped and composite entries condensed.
func AssembleTaxa(taxonMode TaxonSelectMode, taxonList string, pairsMode PairwiseSelectMode, pairsList string) []string {
	var raw []string
	switch taxonMode {
	case TaxaAll:
		raw = append(raw, "ALL")
	case TaxaList:
		raw = append(raw, strings.ReplaceAll(taxonList, "\n", ","))
	}
	switch pairsMode {
	case PairsAll:
		raw = append(raw, "ALLVSALL")
	case PairsList:
		raw = append(raw, strings.ReplaceAll(pairsList, "\n", ","))
	}

	var taxa []string
	for _, chunk := range raw {
		for _, entry := range strings.Split(chunk, ",") {
			entry = strings.TrimSpace(entry)
			entry = Condense(entry, "VS")
			entry = Condense(entry, "+")
			if entry != "" {
				taxa = append(taxa, entry)
			}
		}
	}
	return taxa
}

// DigestTaxa splits a QTAXA configuration value into the taxon and pair
// lists, inflated for editing. Entries containing "VS" are pair
// comparisons, the rest are single or composite taxa.
func DigestTaxa(value string) (taxonList, pairsList string) {
	var taxa, pairs []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "VS") {
			pairs = append(pairs, Inflate(entry, "VS"))
		} else {
			taxa = append(taxa, Inflate(entry, "+"))
		}
	}
	return strings.Join(taxa, "\n") + "\n", strings.Join(pairs, "\n") + "\n"
}
