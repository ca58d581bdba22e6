package bot

import (
	"sort"
	"strings"
)

// AccountResolver maps a free-text account hint to a configured account id.
type AccountResolver struct {
	// keywords holds lowercase keywords in deterministic order so hints
	// matching more than one keyword always resolve the same way.
	keywords  []string
	accounts  map[string]int64
	defaultID int64
}

// NewAccountResolver creates a resolver. defaultID zero means no default
// account is configured.
func NewAccountResolver(accounts map[string]int64, defaultID int64) *AccountResolver {
	keywords := make([]string, 0, len(accounts))
	for keyword := range accounts {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)
	return &AccountResolver{keywords: keywords, accounts: accounts, defaultID: defaultID}
}

// Resolve returns the first account whose keyword is a case-insensitive
// substring of the hint. Without a hint or a match it falls back to the
// default account; ok is false when no default exists either.
func (r *AccountResolver) Resolve(hint string) (int64, bool) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint != "" {
		for _, keyword := range r.keywords {
			if strings.Contains(hint, keyword) {
				return r.accounts[keyword], true
			}
		}
	}
	if r.defaultID != 0 {
		return r.defaultID, true
	}
	return 0, false
}
