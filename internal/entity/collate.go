package entity

import (
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Names are compared with Spanish collation so that "Ñ" sorts after "N"
// and accents do not push names to the end of the list.
// collate.Collator is not safe for concurrent use, hence the mutex.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Spanish, collate.IgnoreCase)
)

// CompareNames orders two display names alphabetically.
func CompareNames(a, b string) int {
	collatorMu.Lock()
	c := collator.CompareString(a, b)
	collatorMu.Unlock()
	if c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
