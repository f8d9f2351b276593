package utils

import "github.com/teris-io/shortid"

// Seeded once at startup; a single worker id is enough for one process.
var sid = shortid.MustNew(1, shortid.DefaultABC, 2342)

// GenerateCardID returns an opaque URL-safe card identifier of 7 to 14
// characters. Ids are statistically collision-resistant; the database's
// uniqueness constraint catches the rare duplicate.
func GenerateCardID() (string, error) {
	return sid.Generate()
}
