package features

import (
	"sort"

	"github.com/obsstack/aiops-rca/internal/models"
)

// Vocabulary assigns stable integer codes to the distinct service names seen
// in one run. It is built in a dedicated pass over the full dataset and then
// passed around explicitly, so encoding stays a pure function of its inputs.
type Vocabulary struct {
	codes map[string]int
	names []string
}

// BuildVocabulary enumerates distinct services in sorted order. Sorting makes
// the code table independent of input permutation as well as repeatable
// across runs on the same dataset.
func BuildVocabulary(records []models.EnrichedRecord) *Vocabulary {
	set := make(map[string]struct{})
	for _, rec := range records {
		set[rec.Service] = struct{}{}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	codes := make(map[string]int, len(names))
	for i, name := range names {
		codes[name] = i
	}
	return &Vocabulary{codes: codes, names: names}
}

// Code returns the integer code for a service; services outside the build set
// report ok=false.
func (v *Vocabulary) Code(service string) (int, bool) {
	code, ok := v.codes[service]
	return code, ok
}

// Services returns the known service names in code order.
func (v *Vocabulary) Services() []string {
	return append([]string(nil), v.names...)
}

// Len returns the vocabulary size.
func (v *Vocabulary) Len() int {
	return len(v.names)
}
