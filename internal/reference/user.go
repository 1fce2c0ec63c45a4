package reference

import "strings"

// MaxInterests is the capacity of a user's interest window.
const MaxInterests = 5

// User is an account whose topical interests are tracked.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Interests string `json:"interests"` // Whitespace-joined interest terms, newest last
}

// InterestTerms splits the stored interest text on whitespace.
func (u User) InterestTerms() []string {
	return strings.Fields(u.Interests)
}

// AppendInterests appends terms to the existing interest text and keeps only
// the newest MaxInterests items. Terms are not deduplicated.
func AppendInterests(current string, terms []string) string {
	interests := strings.Fields(current)
	interests = append(interests, terms...)
	if len(interests) > MaxInterests {
		interests = interests[len(interests)-MaxInterests:]
	}
	return strings.Join(interests, " ")
}
