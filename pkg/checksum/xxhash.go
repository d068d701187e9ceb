package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// GetFileChecksum hashes the whole file so re-submitted payroll exports can be
// recognized before any row is parsed.
func GetFileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to copy file content to hasher for file %s: %w", filePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// CalculateHash returns the row checksum used for idempotent labor-hour inserts.
// Fields are trimmed so that whitespace-only differences hash the same.
func CalculateHash(record []string) string {
	fields := make([]string, len(record))
	for i, field := range record {
		fields[i] = strings.TrimSpace(field)
	}

	digest := xxhash.New()
	digest.Write([]byte(strings.Join(fields, ";")))

	return hex.EncodeToString(digest.Sum(nil))
}
