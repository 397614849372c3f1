// Package files checks and parses the two input formats: FASTA sequence
// files and MolD parameter configuration files. Validation failures are
// raised here, synchronously, before a task is ever queued.
package files

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// configurationKeys is the closed set of accepted parameter names.
var configurationKeys = map[string]bool{
	"GAPS_AS_CHARS":        true,
	"QTAXA":                true,
	"TAXON_RANK":           true,
	"INPUT_FILE":           true,
	"ORIG_FNAME":           true,
	"CUTOFF":               true,
	"NUMBERN":              true,
	"NUMBER_OF_ITERATIONS": true,
	"MAXLEN1":              true,
	"MAXLEN2":              true,
	"IREF":                 true,
	"PDIFF":                true,
	"NMAXSEQ":              true,
	"SCORING":              true,
	"OUTPUT_FILE":          true,
}

// CheckSequenceFile validates that path holds sequences in the expected
// shape: the file must begin with the FASTA marker character, and the first
// identifier line must carry exactly one pipe-delimited taxon field.
func CheckSequenceFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening sequence file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	first, err := r.ReadByte()
	if err != nil || first != '>' {
		return fmt.Errorf("error opening sequence file: sequences must be provided in the Fasta format, and the file must begin with the %q symbol", ">")
	}

	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("error opening sequence file: missing identifier line")
	}
	switch parts := strings.Split(strings.TrimRight(line, "\r\n"), "|"); {
	case len(parts) < 2:
		return fmt.Errorf("error opening sequence file: taxon identifiers must be provided after each sequence identifier, separated by a single pipe symbol: %q", "|")
	case len(parts) > 2:
		return fmt.Errorf("error opening sequence file: each identifier line must only contain a single pipe symbol: %q", "|")
	}
	return nil
}

// ParseConfigurationFile reads a parameter file of KEY=VALUE lines. Lines
// starting with '#' are comments. Keys are matched case-insensitively
// against the closed parameter set and returned uppercased; an unknown key
// rejects the whole file. Lines with an empty value are treated as absent,
// not as zero. Values have their spaces stripped.
func ParseConfigurationFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration file: %w", err)
	}
	defer file.Close()

	params := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) != 2 || parts[1] == "" {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(parts[0]))
		params[key] = strings.ReplaceAll(parts[1], " ", "")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading configuration file: %w", err)
	}

	if len(params) == 0 {
		return nil, fmt.Errorf("error opening configuration file: no parameters found in file: %s", path)
	}
	for key := range params {
		if !configurationKeys[key] {
			return nil, fmt.Errorf("error opening configuration file: invalid parameter name: %s", key)
		}
	}
	return params, nil
}
