package validation

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloudx-io/openclearing/marketapi/parsing"
)

// LoadPCRsFromFile loads known PCR sets from a JSON file
func LoadPCRsFromFile(path string) ([]PCRSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCR config file: %w", err)
	}

	var config PCRConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse PCR config: %w", err)
	}

	if len(config.PCRSets) == 0 {
		return nil, fmt.Errorf("no PCR sets found in config file")
	}

	return config.PCRSets, nil
}

// ValidatePCRs checks if PCRs match any known valid set
// Returns: (match bool, matched set index)
// If no match, returns (false, -1)
func ValidatePCRs(doc *parsing.NitroAttestationDocument, knownSets []PCRSet) (bool, int) {
	for i, knownSet := range knownSets {
		if doc.PCR(0) == knownSet.PCR0 &&
			doc.PCR(1) == knownSet.PCR1 &&
			doc.PCR(2) == knownSet.PCR2 {
			return true, i
		}
	}
	return false, -1
}
